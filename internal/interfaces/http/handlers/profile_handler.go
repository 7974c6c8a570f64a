package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/scoring"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// ProfileHandler lists the registered use-case profiles.
type ProfileHandler struct {
	profiles *scoring.Registry
	params   scoring.Params
}

// NewProfileHandler wires the profile registry into HTTP. The scorer
// supplies the effective score bounds advertised per profile.
func NewProfileHandler(profiles *scoring.Registry, scorer *scoring.Scorer) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, params: scorer.Params()}
}

// List answers GET /api/v1/profiles with one summary per registered profile,
// ordered by name.
func (h *ProfileHandler) List(c *gin.Context) {
	registered := h.profiles.List()

	summaries := make([]analysis.ProfileSummary, len(registered))
	for i, p := range registered {
		summaries[i] = analysis.ProfileSummary{
			Name:         p.Name,
			Title:        p.Title,
			Description:  p.Description,
			WeightCount:  len(p.Weights),
			SynergyCount: len(p.Synergies) + len(p.AntiSynergies),
			ScoreMin:     h.params.MinScore,
			ScoreMax:     h.params.MaxScore,
		}
	}
	c.JSON(http.StatusOK, gin.H{"profiles": summaries})
}
