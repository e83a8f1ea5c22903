package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	graphrag "github.com/donbr/graphrag-platform"
	"github.com/donbr/graphrag-platform/pkg/server/dto"
)

// SearchHandler handles retrieval requests
type SearchHandler struct {
	engine Engine
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(engine Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Search handles POST /api/v1/search. The result always distinguishes "no
// answer produced" from "no sources found"; only configuration-level
// failures map to error statuses.
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	opts := &graphrag.SearchOptions{
		Strategy: req.Strategy,
		TopK:     req.TopK,
	}
	if req.Dataset != "" {
		opts.Filters = &graphrag.Filters{Dataset: req.Dataset}
	}

	result, err := h.engine.Search(c.Request.Context(), req.Question, opts)
	if err != nil {
		if errors.Is(err, graphrag.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "search_failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
