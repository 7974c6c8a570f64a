package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/LandQuant-Intelligence/internal/application/scan"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// defaultScanListLimit bounds GET /scans when no limit is given.
const defaultScanListLimit = 20

// ScanHandler serves the bulk-scan endpoints.
type ScanHandler struct {
	scans scan.Service
}

// NewScanHandler wires the scan service into HTTP.
func NewScanHandler(scans scan.Service) *ScanHandler {
	return &ScanHandler{scans: scans}
}

// Start answers POST /api/v1/scans. The scan is accepted for asynchronous
// processing, so success is 202 with the scan descriptor.
func (h *ScanHandler) Start(c *gin.Context) {
	var req analysis.ScanRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.scans.Start(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, created)
}

// List answers GET /api/v1/scans?limit=N, newest first.
func (h *ScanHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", defaultScanListLimit)

	scans, err := h.scans.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans})
}

// Get answers GET /api/v1/scans/:id with live job counts merged in.
func (h *ScanHandler) Get(c *gin.Context) {
	id, ok := h.scanID(c)
	if !ok {
		return
	}

	s, err := h.scans.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Report answers GET /api/v1/scans/:id/report: counts plus every permanently
// failed coordinate with its last error.
func (h *ScanHandler) Report(c *gin.Context) {
	id, ok := h.scanID(c)
	if !ok {
		return
	}

	report, err := h.scans.Status(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ArchiveReport answers POST /api/v1/scans/:id/archive: generates the
// current report, stores it in the object archive, and returns both the
// report and its object key.
func (h *ScanHandler) ArchiveReport(c *gin.Context) {
	id, ok := h.scanID(c)
	if !ok {
		return
	}

	report, key, err := h.scans.Archive(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "object_key": key})
}

// scanID parses the :id path parameter, responding with 400 on garbage.
func (h *ScanHandler) scanID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errors.InvalidParam("scan id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
