package graphrag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donbr/graphrag-platform/pkg/driver"
	"github.com/donbr/graphrag-platform/pkg/types"
)

func TestSearchEmptyGraphReturnsEmptyOutcome(t *testing.T) {
	c := newTestClient(t, newMemoryDriver(), &stubEmbedder{dims: 8}, nil)

	result, err := c.Search(context.Background(), "what is discussed?", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeEmpty, result.Outcome)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Answer)
}

func TestSearchRejectsEmptyQuestion(t *testing.T) {
	c := newTestClient(t, newMemoryDriver(), &stubEmbedder{dims: 8}, nil)

	_, err := c.Search(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestSearchSemanticQuestionAnswered(t *testing.T) {
	d := newMemoryDriver()
	d.vectorResults = []driver.ScoredContent{
		{Content: content("seg-1", 0, 10), Score: 0.9},
	}
	n := &stubNLP{responses: []string{"The talk covers graph databases."}}
	c := newTestClient(t, d, &stubEmbedder{dims: 8}, n)

	result, err := c.Search(context.Background(), "what is the talk about?", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeAnswered, result.Outcome)
	assert.Equal(t, StrategyVector, result.StrategyUsed)
	assert.Equal(t, "The talk covers graph databases.", result.Answer)
	require.Len(t, result.Sources, 1)
}

func TestSearchSynthesisFailureDegradesToRetrievedOnly(t *testing.T) {
	d := newMemoryDriver()
	d.vectorResults = []driver.ScoredContent{
		{Content: content("seg-1", 0, 10), Score: 0.9},
	}
	n := &stubNLP{errs: []error{errors.New("model unavailable")}}
	c := newTestClient(t, d, &stubEmbedder{dims: 8}, n)

	result, err := c.Search(context.Background(), "what is the talk about?", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeRetrievedOnly, result.Outcome)
	assert.Empty(t, result.Answer)
	require.Len(t, result.Sources, 1)
}

func TestSearchStructuralQuestionRoutesToTranslation(t *testing.T) {
	d := newMemoryDriver()
	d.queryRows = []map[string]any{
		{"id": "seg-7", "title": "keynote", "text": "Alice said graphs win", "type": "segment",
			"start_time": 0.0, "end_time": 42.0},
	}
	n := &stubNLP{responses: []string{
		`{"cypher": "MATCH (c)-[:HAS_SPEAKER]->(s {name: $name, dataset: $dataset}) RETURN c.id AS id, c.title AS title, c.text AS text, c.type AS type, c.start_time AS start_time, c.end_time AS end_time LIMIT $top_k", "params": {"name": "alice"}}`,
		"Alice said graphs win.",
	}}
	c := newTestClient(t, d, &stubEmbedder{dims: 8}, n)

	result, err := c.Search(context.Background(), "who said graphs win?", nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyText2Cypher, result.StrategyUsed)
	assert.Equal(t, types.OutcomeAnswered, result.Outcome)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "seg-7", result.Sources[0].Content.ID)
	assert.Equal(t, StrategyText2Cypher, result.Sources[0].Provenance.Strategy)
}

func TestSearchUnparsableTranslationFallsBackToHybrid(t *testing.T) {
	d := newMemoryDriver()
	d.fulltextResults = []driver.ScoredContent{
		{Content: content("seg-2", 1, 20), Score: 1.5},
	}
	n := &stubNLP{responses: []string{
		"I am not able to produce a query for that.",
		"Found it in the second segment.",
	}}
	c := newTestClient(t, d, &stubEmbedder{dims: 8}, n)

	result, err := c.Search(context.Background(), "who said the index matters?", nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyHybrid, result.StrategyUsed)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "seg-2", result.Sources[0].Content.ID)
}

func TestSearchAtMostTwoAttempts(t *testing.T) {
	// Both the vector primary and the hybrid fallback come up empty. The
	// embedder is called once per vector search, so two attempts mean
	// exactly two embeddings.
	e := &stubEmbedder{dims: 8}
	c := newTestClient(t, newMemoryDriver(), e, nil)

	result, err := c.Search(context.Background(), "anything at all", nil)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeEmpty, result.Outcome)
	assert.Equal(t, 2, e.calls)
}

func TestSearchExplicitOverrideGetsNoFallback(t *testing.T) {
	e := &stubEmbedder{dims: 8}
	c := newTestClient(t, newMemoryDriver(), e, nil)

	result, err := c.Search(context.Background(), "anything", &SearchOptions{Strategy: StrategyVector})
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeEmpty, result.Outcome)
	assert.Equal(t, StrategyVector, result.StrategyUsed)
	assert.Equal(t, 1, e.calls)
}

func TestSearchWithoutNLPRoutesStructuralToVector(t *testing.T) {
	d := newMemoryDriver()
	d.vectorResults = []driver.ScoredContent{
		{Content: content("seg-1", 0, 10), Score: 0.9},
	}
	c := newTestClient(t, d, &stubEmbedder{dims: 8}, nil)

	result, err := c.Search(context.Background(), "who said graphs win?", nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyVector, result.StrategyUsed)
	assert.Equal(t, types.OutcomeRetrievedOnly, result.Outcome)
}

func TestClassify(t *testing.T) {
	n := &stubNLP{}
	c := newTestClient(t, newMemoryDriver(), &stubEmbedder{dims: 8}, n)

	tests := []struct {
		question string
		override string
		primary  string
		fallback string
	}{
		{"who said the cache is cold?", "", StrategyText2Cypher, StrategyHybrid},
		{"which speaker covered indexes?", "", StrategyText2Cypher, StrategyHybrid},
		{"what follows the introduction?", "", StrategyText2Cypher, StrategyHybrid},
		{"how many speakers are there?", "", StrategyText2Cypher, StrategyHybrid},
		{"explain vector indexes", "", StrategyVector, StrategyHybrid},
		{"explain vector indexes", StrategyTraversal, StrategyTraversal, ""},
		{"who said it?", StrategyHybrid, StrategyHybrid, ""},
	}
	for _, tt := range tests {
		primary, fallback := c.classify(tt.question, tt.override)
		assert.Equal(t, tt.primary, primary, tt.question)
		assert.Equal(t, tt.fallback, fallback, tt.question)
	}
}
