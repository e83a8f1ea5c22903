package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/donbr/graphrag-platform/pkg/server/dto"
	"github.com/donbr/graphrag-platform/pkg/types"
)

// IngestHandler handles data ingestion requests
type IngestHandler struct {
	engine Engine
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(engine Engine) *IngestHandler {
	return &IngestHandler{engine: engine}
}

// AddSegments handles POST /api/v1/ingest. Ingestion runs synchronously and
// returns the per-segment report; partial failure is a 200 with failures
// listed, not an error status.
func (h *IngestHandler) AddSegments(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	report, err := h.engine.Ingest(c.Request.Context(), req.Dataset, req.Segments)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "ingest_failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ClearDataset handles DELETE /api/v1/ingest/clear.
func (h *IngestHandler) ClearDataset(c *gin.Context) {
	var req dto.ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if err := h.engine.ClearDataset(c.Request.Context(), req.Dataset); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "clear_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dataset": req.Dataset})
}

// GetStats handles GET /api/v1/stats.
func (h *IngestHandler) GetStats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context(), c.Query("dataset"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "stats_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
