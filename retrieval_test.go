package graphrag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donbr/graphrag-platform/pkg/driver"
	"github.com/donbr/graphrag-platform/pkg/types"
)

func TestVectorRetrieverMapsScores(t *testing.T) {
	d := newMemoryDriver()
	d.vectorResults = []driver.ScoredContent{
		{Content: content("a", 0, 10), Score: 0.9},
		{Content: content("b", 1, 20), Score: 0.4},
	}
	r := NewVectorRetriever(d, &stubEmbedder{dims: 8}, nil)

	items, err := r.Retrieve(context.Background(), "what is a graph", 5, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Content.ID)
	assert.Equal(t, 0.9, items[0].Score)
	assert.Equal(t, StrategyVector, items[0].Provenance.Strategy)
}

func TestVectorRetrieverEmptyResults(t *testing.T) {
	r := NewVectorRetriever(newMemoryDriver(), &stubEmbedder{dims: 8}, nil)

	items, err := r.Retrieve(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestTraversalRetrieverDecaysNeighborScores(t *testing.T) {
	d := newMemoryDriver()
	d.vectorResults = []driver.ScoredContent{
		{Content: content("seed", 0, 10), Score: 1.0},
	}
	d.neighbors = []driver.Neighbor{
		{Content: content("hop1", 1, 20), SeedID: "seed", Hops: 1},
		{Content: content("hop2", 2, 30), SeedID: "seed", Hops: 2},
	}
	vector := NewVectorRetriever(d, &stubEmbedder{dims: 8}, nil)
	r := NewTraversalRetriever(d, vector, 0.7, 2, nil)

	items, err := r.Retrieve(context.Background(), "q", 10, nil)
	require.NoError(t, err)
	require.Len(t, items, 3)

	byID := map[string]types.RetrievedItem{}
	for _, it := range items {
		byID[it.Content.ID] = it
	}
	assert.Equal(t, 1.0, byID["seed"].Score)
	assert.InDelta(t, 0.7, byID["hop1"].Score, 1e-9)
	assert.InDelta(t, 0.49, byID["hop2"].Score, 1e-9)
	assert.Equal(t, 1, byID["hop1"].Provenance.Hops)
}

func TestTraversalRetrieverDedupKeepsMaxScore(t *testing.T) {
	d := newMemoryDriver()
	d.vectorResults = []driver.ScoredContent{
		{Content: content("seed-a", 0, 10), Score: 1.0},
		{Content: content("seed-b", 1, 20), Score: 0.5},
	}
	// The same node is reachable from both seeds at different distances.
	d.neighbors = []driver.Neighbor{
		{Content: content("shared", 2, 30), SeedID: "seed-a", Hops: 2},
		{Content: content("shared", 2, 30), SeedID: "seed-b", Hops: 1},
	}
	vector := NewVectorRetriever(d, &stubEmbedder{dims: 8}, nil)
	r := NewTraversalRetriever(d, vector, 0.7, 2, nil)

	items, err := r.Retrieve(context.Background(), "q", 10, nil)
	require.NoError(t, err)

	var shared *types.RetrievedItem
	for i := range items {
		if items[i].Content.ID == "shared" {
			shared = &items[i]
		}
	}
	require.NotNil(t, shared)
	// 1.0 * 0.7^2 = 0.49 beats 0.5 * 0.7^1 = 0.35.
	assert.InDelta(t, 0.49, shared.Score, 1e-9)
}

func TestHybridMergeIsDeterministic(t *testing.T) {
	vec := []types.RetrievedItem{
		{Content: content("a", 0, 10), Score: 0.9},
		{Content: content("b", 1, 20), Score: 0.5},
	}
	text := []driver.ScoredContent{
		{Content: content("b", 1, 20), Score: 3.0},
		{Content: content("c", 2, 30), Score: 1.0},
	}

	first := mergeHybrid(vec, text, 0.5, 0.5)
	for i := 0; i < 10; i++ {
		again := mergeHybrid(vec, text, 0.5, 0.5)
		require.Equal(t, first, again)
	}

	// a and b tie at 0.5 after normalization; b wins on recency.
	assert.Equal(t, "b", first[0].Content.ID)
	assert.Equal(t, StrategyHybrid, first[0].Provenance.Strategy)
}

func TestHybridMergeTieBreaksByRecency(t *testing.T) {
	// Two items in the vector list only, with equal scores; the more recent
	// source timestamp wins.
	vec := []types.RetrievedItem{
		{Content: content("older", 0, 10), Score: 0.5},
		{Content: content("newer", 1, 99), Score: 0.5},
	}
	merged := mergeHybrid(vec, nil, 0.5, 0.5)
	require.Len(t, merged, 2)
	assert.Equal(t, "newer", merged[0].Content.ID)
}

func TestHybridTreatsFailedSubQueryAsEmpty(t *testing.T) {
	d := newMemoryDriver()
	d.vectorResults = []driver.ScoredContent{
		{Content: content("v", 0, 10), Score: 0.8},
	}
	d.fulltextErr = errors.New("fulltext index offline")
	vector := NewVectorRetriever(d, &stubEmbedder{dims: 8}, nil)
	r := NewHybridRetriever(d, vector, 0.5, 0.5, time.Second, nil)

	items, err := r.Retrieve(context.Background(), "q", 5, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "v", items[0].Content.ID)
}

func TestHybridTreatsTimedOutSubQueryAsEmpty(t *testing.T) {
	d := newMemoryDriver()
	d.vectorResults = []driver.ScoredContent{
		{Content: content("v", 0, 10), Score: 0.8},
	}
	d.fulltextResults = []driver.ScoredContent{
		{Content: content("f", 1, 20), Score: 2.0},
	}
	d.fulltextDelay = 200 * time.Millisecond
	vector := NewVectorRetriever(d, &stubEmbedder{dims: 8}, nil)
	r := NewHybridRetriever(d, vector, 0.5, 0.5, 10*time.Millisecond, nil)

	items, err := r.Retrieve(context.Background(), "q", 5, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "v", items[0].Content.ID)
}

func TestHybridTruncatesToTopK(t *testing.T) {
	d := newMemoryDriver()
	d.vectorResults = []driver.ScoredContent{
		{Content: content("a", 0, 10), Score: 0.9},
		{Content: content("b", 1, 20), Score: 0.8},
		{Content: content("c", 2, 30), Score: 0.7},
	}
	vector := NewVectorRetriever(d, &stubEmbedder{dims: 8}, nil)
	r := NewHybridRetriever(d, vector, 0.5, 0.5, time.Second, nil)

	items, err := r.Retrieve(context.Background(), "q", 2, nil)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMinMaxNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, nil},
		{"single maps to one", []float64{3.2}, []float64{1.0}},
		{"constant maps to one", []float64{2, 2}, []float64{1, 1}},
		{"spread", []float64{1, 2, 3}, []float64{0, 0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, minMaxNormalize(tt.in))
		})
	}
}
