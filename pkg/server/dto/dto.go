package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/donbr/graphrag-platform/pkg/types"
)

// Validation errors
var (
	ErrEmptyDataset    = errors.New("dataset cannot be empty")
	ErrEmptySegments   = errors.New("segments cannot be empty")
	ErrEmptyQuestion   = errors.New("question cannot be empty")
	ErrDatasetTooLong  = errors.New("dataset exceeds maximum length (256)")
	ErrTooManySegments = errors.New("segments count exceeds maximum (10000)")
	ErrTextTooLong     = errors.New("segment text exceeds maximum length (1MB)")
)

// Field limits to keep request bodies bounded.
const (
	MaxDatasetLength = 256
	MaxSegmentCount  = 10000
	MaxTextLength    = 1024 * 1024
	MaxTopK          = 100
)

// IngestRequest carries a batch of transcript segments for one dataset.
type IngestRequest struct {
	Dataset  string          `json:"dataset" binding:"required"`
	Segments []types.Segment `json:"segments" binding:"required"`
}

// Validate performs validation on IngestRequest.
func (r *IngestRequest) Validate() error {
	if strings.TrimSpace(r.Dataset) == "" {
		return ErrEmptyDataset
	}
	if len(r.Dataset) > MaxDatasetLength {
		return ErrDatasetTooLong
	}
	if len(r.Segments) == 0 {
		return ErrEmptySegments
	}
	if len(r.Segments) > MaxSegmentCount {
		return ErrTooManySegments
	}
	for i, seg := range r.Segments {
		if len(seg.Text) > MaxTextLength {
			return fmt.Errorf("segment %d: %w", i, ErrTextTooLong)
		}
	}
	return nil
}

// SearchRequest asks a question against an ingested dataset.
type SearchRequest struct {
	Question string `json:"question" binding:"required"`
	Dataset  string `json:"dataset,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate performs validation on SearchRequest.
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if r.TopK < 0 || r.TopK > MaxTopK {
		return fmt.Errorf("top_k must be between 0 and %d", MaxTopK)
	}
	switch r.Strategy {
	case "", "vector", "traversal", "hybrid", "text2cypher":
	default:
		return fmt.Errorf("unknown strategy %q", r.Strategy)
	}
	return nil
}

// ClearRequest removes one dataset's nodes and relationships.
type ClearRequest struct {
	Dataset string `json:"dataset" binding:"required"`
}

// Validate performs validation on ClearRequest.
func (r *ClearRequest) Validate() error {
	if strings.TrimSpace(r.Dataset) == "" {
		return ErrEmptyDataset
	}
	if len(r.Dataset) > MaxDatasetLength {
		return ErrDatasetTooLong
	}
	return nil
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
