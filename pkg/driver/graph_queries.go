package driver

import (
	"fmt"
	"strings"

	"github.com/donbr/graphrag-platform/pkg/schema"
)

// Queries builds the Cypher the adapter issues, parameterized by the schema
// registry so label and index names are never hard-coded. Node labels and
// relationship types cannot be bound as query parameters, so they are
// interpolated here and nowhere else.
type Queries struct {
	reg *schema.Registry
}

// NewQueries creates a query builder bound to a registry.
func NewQueries(reg *schema.Registry) *Queries {
	return &Queries{reg: reg}
}

// UpsertContent merges a content node by id. Embedding status flips to
// present only when a vector is actually attached, keeping pending nodes
// invisible to vector queries.
func (q *Queries) UpsertContent() string {
	return fmt.Sprintf(`
		MERGE (c:%s {id: $id})
		ON CREATE SET c.created_at = $now
		SET c.title = $title,
		    c.text = $text,
		    c.type = $type,
		    c.dataset = $dataset,
		    c.start_time = $start_time,
		    c.end_time = $end_time,
		    c.source_order = $source_order,
		    c.embedding_status = $embedding_status,
		    c.updated_at = $now,
		    c.embedding = CASE WHEN $embedding_status = 'present' THEN $embedding ELSE c.embedding END
		RETURN c.id AS id`, q.reg.ContentLabel())
}

// UpsertSpeaker merges a speaker by normalized natural key within a dataset.
// First-seen wins for identity: the candidate id is only applied ON CREATE.
func (q *Queries) UpsertSpeaker() string {
	return fmt.Sprintf(`
		MERGE (s:%s {key: $key, dataset: $dataset})
		ON CREATE SET s.id = $id, s.name = $name
		RETURN s.id AS id, s.name AS name`, q.reg.SpeakerLabel())
}

// UpsertTopic merges a topic by normalized name within a dataset.
func (q *Queries) UpsertTopic() string {
	return fmt.Sprintf(`
		MERGE (t:%s {key: $key, dataset: $dataset})
		ON CREATE SET t.id = $id, t.name = $name, t.category = $category
		RETURN t.id AS id, t.name AS name, t.category AS category`, q.reg.TopicLabel())
}

// LinkHasSpeaker merges the HAS_SPEAKER relationship.
func (q *Queries) LinkHasSpeaker() string {
	return fmt.Sprintf(`
		MATCH (c:%s {id: $content_id})
		MATCH (s:%s {id: $speaker_id})
		MERGE (c)-[:%s]->(s)`, q.reg.ContentLabel(), q.reg.SpeakerLabel(), schema.RelHasSpeaker)
}

// LinkMentions merges the MENTIONS relationship.
func (q *Queries) LinkMentions() string {
	return fmt.Sprintf(`
		MATCH (c:%s {id: $content_id})
		MATCH (t:%s {id: $topic_id})
		MERGE (c)-[:%s]->(t)`, q.reg.ContentLabel(), q.reg.TopicLabel(), schema.RelMentions)
}

// LinkFollows merges the FOLLOWS relationship between sequential segments.
func (q *Queries) LinkFollows() string {
	return fmt.Sprintf(`
		MATCH (a:%s {id: $from_id})
		MATCH (b:%s {id: $to_id})
		MERGE (a)-[:%s]->(b)`, q.reg.ContentLabel(), q.reg.ContentLabel(), schema.RelFollows)
}

// VectorSearch issues a kNN query against the declared vector index.
// Pending nodes never carry the embedding property, so the index alone
// keeps them out of results.
func (q *Queries) VectorSearch() (string, error) {
	spec, err := q.reg.VectorIndexSpec(q.reg.ContentLabel())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`
		CALL db.index.vector.queryNodes('%s', $top_k, $embedding)
		YIELD node, score
		WHERE node.dataset = $dataset AND node.embedding_status = 'present'
		RETURN node, score
		ORDER BY score DESC`, spec.IndexName), nil
}

// FulltextSearch issues a query against the declared full-text index.
func (q *Queries) FulltextSearch() (string, error) {
	spec, err := q.reg.FulltextIndexSpec(q.reg.ContentLabel())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`
		CALL db.index.fulltext.queryNodes('%s', $query)
		YIELD node, score
		WHERE node.dataset = $dataset
		RETURN node, score
		ORDER BY score DESC
		LIMIT $top_k`, spec.IndexName), nil
}

// Neighborhood expands from seed content nodes over the declared
// relationships out to a bounded hop count, returning reached content nodes
// with their minimum hop distance. MENTIONS and HAS_SPEAKER pass through an
// intermediate Speaker/Topic node, so the path bound is doubled and the
// relationship-step length halved back into hops.
func (q *Queries) Neighborhood(maxHops int) string {
	depth := maxHops * 2
	rels := strings.Join([]string{schema.RelMentions, schema.RelHasSpeaker, schema.RelFollows}, "|")
	return fmt.Sprintf(`
		UNWIND $seed_ids AS seed_id
		MATCH (seed:%s {id: seed_id, dataset: $dataset})
		MATCH path = (seed)-[:%s*1..%d]-(n:%s)
		WHERE n.dataset = $dataset AND n.id <> seed_id
		WITH seed_id, n, min(length(path)) AS steps
		RETURN seed_id, n, toInteger(ceil(toFloat(steps) / 2.0)) AS hops`,
		q.reg.ContentLabel(), rels, depth, q.reg.ContentLabel())
}

// PendingEmbeddings returns content nodes awaiting an embedding backfill.
func (q *Queries) PendingEmbeddings() string {
	return fmt.Sprintf(`
		MATCH (c:%s {dataset: $dataset})
		WHERE c.embedding_status = 'pending'
		RETURN c AS node
		ORDER BY c.source_order
		LIMIT $limit`, q.reg.ContentLabel())
}

// AttachEmbedding backfills a vector onto a pending node and flips its
// status to present, making it visible to vector queries.
func (q *Queries) AttachEmbedding() string {
	return fmt.Sprintf(`
		MATCH (c:%s {id: $id})
		SET c.embedding = $embedding,
		    c.embedding_status = 'present',
		    c.updated_at = $now`, q.reg.ContentLabel())
}

// ContentChain returns a dataset's content nodes ordered by walking FOLLOWS
// from the first segment.
func (q *Queries) ContentChain() string {
	return fmt.Sprintf(`
		MATCH (first:%s {dataset: $dataset})
		WHERE NOT (:%s)-[:%s]->(first)
		MATCH chain = (first)-[:%s*0..]->(n:%s)
		WITH n, length(chain) AS position
		RETURN n
		ORDER BY position`,
		q.reg.ContentLabel(), q.reg.ContentLabel(), schema.RelFollows,
		schema.RelFollows, q.reg.ContentLabel())
}

// ConstraintStatements renders the uniqueness constraints the registry
// declares.
func (q *Queries) ConstraintStatements() []string {
	constraints := q.reg.RequiredConstraints()
	out := make([]string, 0, len(constraints))
	for _, c := range constraints {
		out = append(out, fmt.Sprintf(
			"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			c.Name, c.Label, c.Property))
	}
	return out
}

// IndexStatements renders the vector and full-text index declarations plus
// the range indexes ingestion and retrieval filter on.
func (q *Queries) IndexStatements() ([]string, error) {
	content := q.reg.ContentLabel()

	vec, err := q.reg.VectorIndexSpec(content)
	if err != nil {
		return nil, err
	}
	ft, err := q.reg.FulltextIndexSpec(content)
	if err != nil {
		return nil, err
	}

	ftProps := make([]string, len(ft.Properties))
	for i, p := range ft.Properties {
		ftProps[i] = "n." + p
	}

	return []string{
		fmt.Sprintf(`CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.%s)
			OPTIONS {indexConfig: {`+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: '%s'}}`,
			vec.IndexName, vec.Label, vec.Property, vec.Dimensions, vec.Similarity),
		fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:%s) ON EACH [%s]",
			ft.IndexName, ft.Label, strings.Join(ftProps, ", ")),
		fmt.Sprintf("CREATE INDEX %s_dataset IF NOT EXISTS FOR (n:%s) ON (n.dataset)",
			strings.ToLower(content), content),
		fmt.Sprintf("CREATE INDEX %s_order IF NOT EXISTS FOR (n:%s) ON (n.dataset, n.source_order)",
			strings.ToLower(content), content),
	}, nil
}

// ClearDataset detaches and deletes every node in a dataset partition.
func (q *Queries) ClearDataset() string {
	return fmt.Sprintf(`
		MATCH (n)
		WHERE (n:%s OR n:%s OR n:%s) AND n.dataset = $dataset
		DETACH DELETE n`,
		q.reg.ContentLabel(), q.reg.SpeakerLabel(), q.reg.TopicLabel())
}

// StatsQuery counts nodes and relationships for one dataset.
func (q *Queries) StatsQuery() string {
	return fmt.Sprintf(`
		OPTIONAL MATCH (c:%s {dataset: $dataset})
		WITH count(c) AS contents
		OPTIONAL MATCH (s:%s {dataset: $dataset})
		WITH contents, count(s) AS speakers
		OPTIONAL MATCH (t:%s {dataset: $dataset})
		WITH contents, speakers, count(t) AS topics
		OPTIONAL MATCH (:%s {dataset: $dataset})-[hs:%s]->()
		WITH contents, speakers, topics, count(hs) AS has_speaker
		OPTIONAL MATCH (:%s {dataset: $dataset})-[m:%s]->()
		WITH contents, speakers, topics, has_speaker, count(m) AS mentions
		OPTIONAL MATCH (:%s {dataset: $dataset})-[f:%s]->()
		RETURN contents, speakers, topics, has_speaker, mentions, count(f) AS follows`,
		q.reg.ContentLabel(), q.reg.SpeakerLabel(), q.reg.TopicLabel(),
		q.reg.ContentLabel(), schema.RelHasSpeaker,
		q.reg.ContentLabel(), schema.RelMentions,
		q.reg.ContentLabel(), schema.RelFollows)
}
