package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/grid"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// ResultReader loads stored analysis records. The postgres result repository
// is the production implementation.
type ResultReader interface {
	// Get loads the record for one (quantum, profile) pair.
	Get(ctx context.Context, quantumID, profile string) (*analysis.AnalysisRecord, error)

	// Latest loads the most recently recorded result for a quantum across
	// all profiles.
	Latest(ctx context.Context, quantumID string) (*analysis.AnalysisRecord, error)
}

// QuantumHandler serves per-quantum lookups against the grid and the result
// store.
type QuantumHandler struct {
	grid    *grid.Grid
	results ResultReader
}

// NewQuantumHandler wires the grid and result store into HTTP.
func NewQuantumHandler(g *grid.Grid, results ResultReader) *QuantumHandler {
	return &QuantumHandler{grid: g, results: results}
}

// Get answers GET /api/v1/quanta/:id: the latest stored analysis record for
// the quantum, or the record for ?profile= when given. The id is validated
// against the grid before touching storage so malformed ids return 400, not
// 404.
func (h *QuantumHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if _, _, _, err := grid.ParseQuantumID(id); err != nil {
		respondError(c, err)
		return
	}

	var (
		rec *analysis.AnalysisRecord
		err error
	)
	if profile := c.Query("profile"); profile != "" {
		rec, err = h.results.Get(c.Request.Context(), id, profile)
	} else {
		rec, err = h.results.Latest(c.Request.Context(), id)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Neighbors answers GET /api/v1/quanta/:id/neighbors?radius_meters=N. The
// radius defaults to one grid cell, i.e. the eight surrounding quanta.
func (h *QuantumHandler) Neighbors(c *gin.Context) {
	id := c.Param("id")
	radius := queryFloat(c, "radius_meters", float64(h.grid.ResolutionMeters()))

	neighbors, err := h.grid.Neighbors(id, radius)
	if err != nil {
		respondError(c, err)
		return
	}

	ids := make([]string, len(neighbors))
	for i, q := range neighbors {
		ids[i] = q.ID
	}
	c.JSON(http.StatusOK, analysis.NeighborList{
		QuantumID:    id,
		RadiusMeters: radius,
		Neighbors:    ids,
	})
}
