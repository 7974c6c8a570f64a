package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/similarity"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

const (
	// defaultSimilarityK is the result count when the query omits k.
	defaultSimilarityK = 10

	// maxSimilarityK caps result counts so a typo cannot drag the whole
	// index through the encoder.
	maxSimilarityK = 100
)

// SimilarityHandler serves nearest-neighbor queries over the vector index.
type SimilarityHandler struct {
	index   similarity.Index
	backend string
	metrics *prometheus.AppMetrics
}

// NewSimilarityHandler wires an index backend into HTTP. The backend name
// labels the query metrics ("memory", "milvus").
func NewSimilarityHandler(index similarity.Index, backend string, metrics *prometheus.AppMetrics) *SimilarityHandler {
	return &SimilarityHandler{index: index, backend: backend, metrics: metrics}
}

// Query answers POST /api/v1/similarity/query: the k indexed quanta most
// similar to the submitted feature record, descending by similarity.
func (h *SimilarityHandler) Query(c *gin.Context) {
	var req analysis.SimilarityQuery
	if !bindJSON(c, &req) {
		return
	}

	k := req.K
	switch {
	case k < 0:
		respondError(c, errors.InvalidParam("k must not be negative"))
		return
	case k == 0:
		k = defaultSimilarityK
	case k > maxSimilarityK:
		k = maxSimilarityK
	}

	start := time.Now()
	matches, err := h.index.Query(c.Request.Context(), feature.RecordFromDTO(req.Features), k)
	prometheus.RecordIndexQuery(h.metrics, h.backend, err, time.Since(start))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]analysis.SimilarityMatch, len(matches))
	for i, m := range matches {
		out[i] = analysis.SimilarityMatch{QuantumID: m.QuantumID, Similarity: m.Similarity}
	}
	c.JSON(http.StatusOK, gin.H{"matches": out})
}
