package handlers

import (
	"context"

	graphrag "github.com/donbr/graphrag-platform"
	"github.com/donbr/graphrag-platform/pkg/driver"
	"github.com/donbr/graphrag-platform/pkg/types"
)

// Engine is the slice of the core client the HTTP handlers consume.
type Engine interface {
	Ingest(ctx context.Context, dataset string, segments []types.Segment) (*types.IngestReport, error)
	Search(ctx context.Context, question string, opts *graphrag.SearchOptions) (*types.SearchResult, error)
	Stats(ctx context.Context, dataset string) (*driver.GraphStats, error)
	ClearDataset(ctx context.Context, dataset string) error
}
