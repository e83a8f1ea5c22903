package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/donbr/graphrag-platform/pkg/types"
)

// GraphDriver is the contract the core consumes from the property-graph
// store: parameterized declarative queries plus the typed helpers the
// constructor and retrievers need. Durability belongs exclusively to the
// store; callers hold no graph state beyond the current request.
type GraphDriver interface {
	// ExecuteQuery runs a parameterized Cypher query and returns the result
	// rows as ordered key/value records.
	ExecuteQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// Content mutations. All upserts MERGE on declared keys so re-running
	// an identical batch creates no duplicates.
	UpsertContent(ctx context.Context, c *types.Content) error
	UpsertSpeaker(ctx context.Context, dataset, name string) (*types.Speaker, error)
	UpsertTopic(ctx context.Context, dataset string, topic types.DetectedTopic) (*types.Topic, error)
	LinkHasSpeaker(ctx context.Context, contentID, speakerID string) error
	LinkMentions(ctx context.Context, contentID, topicID string) error
	LinkFollows(ctx context.Context, fromID, toID string) error

	// Read-side primitives consumed by the retrieval strategies.
	SearchContentByVector(ctx context.Context, embedding []float32, dataset string, topK int) ([]ScoredContent, error)
	SearchContentFulltext(ctx context.Context, query, dataset string, topK int) ([]ScoredContent, error)
	GetNeighborhood(ctx context.Context, seedIDs []string, dataset string, maxHops int) ([]Neighbor, error)
	GetContentChain(ctx context.Context, dataset string) ([]*types.Content, error)

	// Embedding backfill. Pending nodes are content persisted without a
	// vector after a transient embedding failure.
	GetPendingEmbeddings(ctx context.Context, dataset string, limit int) ([]*types.Content, error)
	AttachEmbedding(ctx context.Context, contentID string, embedding []float32) error

	// Maintenance.
	CreateIndices(ctx context.Context) error
	Stats(ctx context.Context, dataset string) (*GraphStats, error)
	ClearDataset(ctx context.Context, dataset string) error
	Close(ctx context.Context) error
}

// ScoredContent pairs a content node with the relevance score the store
// assigned to it (cosine similarity or full-text relevance).
type ScoredContent struct {
	Content *types.Content `json:"content"`
	Score   float64        `json:"score"`
}

// Neighbor is a content node reached by expanding from a seed node, with
// the hop distance the expansion took.
type Neighbor struct {
	Content *types.Content `json:"content"`
	SeedID  string         `json:"seed_id"`
	Hops    int            `json:"hops"`
}

// GraphStats holds per-dataset statistics about the graph.
type GraphStats struct {
	Contents    int64     `json:"contents"`
	Speakers    int64     `json:"speakers"`
	Topics      int64     `json:"topics"`
	HasSpeaker  int64     `json:"has_speaker"`
	Mentions    int64     `json:"mentions"`
	Follows     int64     `json:"follows"`
	LastUpdated time.Time `json:"last_updated"`
}

// ErrorKind classifies store errors for retry decisions.
type ErrorKind string

const (
	// KindTransient marks network and availability failures; retryable at
	// the adapter boundary.
	KindTransient ErrorKind = "transient"
	// KindConstraintViolation marks duplicate/conflicting natural keys;
	// never retryable, recoverable as "already exists".
	KindConstraintViolation ErrorKind = "constraint-violation"
	// KindQuery marks everything else: syntax errors, type mismatches,
	// missing indexes.
	KindQuery ErrorKind = "query"
)

// StoreError wraps a store failure with its classification.
type StoreError struct {
	Kind ErrorKind
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store error (%s, %s): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("store error (%s): %v", e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable store failure.
func IsTransient(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindTransient
}

// IsConstraintViolation reports whether err is a uniqueness conflict.
func IsConstraintViolation(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindConstraintViolation
}
