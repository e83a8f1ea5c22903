package driver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donbr/graphrag-platform/pkg/schema"
)

func newTestQueries(t *testing.T, namespace string) *Queries {
	t.Helper()
	reg, err := schema.NewRegistry(schema.Config{Namespace: namespace, Dimensions: 8})
	require.NoError(t, err)
	return NewQueries(reg)
}

func TestUpsertQueriesUseRegistryLabels(t *testing.T) {
	q := newTestQueries(t, "GraphRAG")

	assert.Contains(t, q.UpsertContent(), "MERGE (c:GraphRAG_Content {id: $id})")
	assert.Contains(t, q.UpsertSpeaker(), "MERGE (s:GraphRAG_Speaker {key: $key, dataset: $dataset})")
	assert.Contains(t, q.UpsertTopic(), "MERGE (t:GraphRAG_Topic {key: $key, dataset: $dataset})")
}

func TestSpeakerIdentityOnlySetOnCreate(t *testing.T) {
	q := newTestQueries(t, "")

	// First-seen wins: a later duplicate must not overwrite id or name.
	cypher := q.UpsertSpeaker()
	assert.Contains(t, cypher, "ON CREATE SET s.id = $id, s.name = $name")
	assert.NotContains(t, cypher, "ON MATCH")
}

func TestLinkQueriesMergeRelationships(t *testing.T) {
	q := newTestQueries(t, "")

	assert.Contains(t, q.LinkHasSpeaker(), "MERGE (c)-[:HAS_SPEAKER]->(s)")
	assert.Contains(t, q.LinkMentions(), "MERGE (c)-[:MENTIONS]->(t)")
	assert.Contains(t, q.LinkFollows(), "MERGE (a)-[:FOLLOWS]->(b)")
}

func TestVectorSearchTargetsDeclaredIndex(t *testing.T) {
	q := newTestQueries(t, "GraphRAG")

	cypher, err := q.VectorSearch()
	require.NoError(t, err)
	assert.Contains(t, cypher, "db.index.vector.queryNodes('graphrag_content_embedding'")
	assert.Contains(t, cypher, "embedding_status = 'present'")
}

func TestFulltextSearchTargetsDeclaredIndex(t *testing.T) {
	q := newTestQueries(t, "GraphRAG")

	cypher, err := q.FulltextSearch()
	require.NoError(t, err)
	assert.Contains(t, cypher, "db.index.fulltext.queryNodes('graphrag_content_fulltext'")
}

func TestNeighborhoodDoublesDepthForIntermediateNodes(t *testing.T) {
	q := newTestQueries(t, "")

	cypher := q.Neighborhood(2)
	assert.Contains(t, cypher, "*1..4")
	assert.Contains(t, cypher, "MENTIONS|HAS_SPEAKER|FOLLOWS")
}

func TestIndexStatementsDeclareVectorDimensions(t *testing.T) {
	q := newTestQueries(t, "")

	statements, err := q.IndexStatements()
	require.NoError(t, err)
	require.NotEmpty(t, statements)
	assert.Contains(t, statements[0], "`vector.dimensions`: 8")
	assert.Contains(t, statements[0], "cosine")
	assert.Contains(t, statements[1], "FULLTEXT INDEX content_fulltext")
}

func TestConstraintStatements(t *testing.T) {
	q := newTestQueries(t, "")

	statements := q.ConstraintStatements()
	require.Len(t, statements, 3)
	for _, stmt := range statements {
		assert.Contains(t, stmt, "IS UNIQUE")
		assert.Contains(t, stmt, "IF NOT EXISTS")
	}
}

func TestClassifyErrorConstraintViolation(t *testing.T) {
	err := classifyError(&db.Neo4jError{
		Code: "Neo.ClientError.Schema.ConstraintValidationFailed",
		Msg:  "node already exists",
	})

	assert.True(t, IsConstraintViolation(err))
	assert.False(t, IsTransient(err))
}

func TestClassifyErrorTransient(t *testing.T) {
	err := classifyError(&db.Neo4jError{
		Code: "Neo.TransientError.Database.DatabaseUnavailable",
		Msg:  "database is unavailable",
	})

	assert.True(t, IsTransient(err))
	assert.False(t, IsConstraintViolation(err))
}

func TestClassifyErrorQueryFallback(t *testing.T) {
	err := classifyError(fmt.Errorf("boom"))

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindQuery, se.Kind)
	assert.False(t, IsTransient(err))
}

func TestClassifyErrorNil(t *testing.T) {
	assert.NoError(t, classifyError(nil))
}
