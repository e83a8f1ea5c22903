package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/donbr/graphrag-platform/pkg/schema"
	"github.com/donbr/graphrag-platform/pkg/types"
)

// Neo4jDriver implements GraphDriver against a Neo4j database. All Cypher
// comes from the Queries builder so label and index names stay bound to the
// schema registry.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
	queries  *Queries
}

// NewNeo4jDriver connects to Neo4j and binds the adapter to a registry.
func NewNeo4jDriver(uri, username, password, database string, reg *schema.Registry) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jDriver{
		client:   client,
		database: database,
		queries:  NewQueries(reg),
	}, nil
}

// ExecuteQuery runs a parameterized Cypher query in a read session and
// returns the rows as maps.
func (n *Neo4jDriver) ExecuteQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return n.executeRead(ctx, cypher, params)
}

// UpsertContent merges a content node by id.
func (n *Neo4jDriver) UpsertContent(ctx context.Context, c *types.Content) error {
	if c == nil {
		return fmt.Errorf("cannot upsert nil content")
	}

	now := time.Now().UTC()

	// The embedding parameter must always be present even when pending;
	// Cypher CASE still evaluates both branches' parameters.
	embedding := c.Embedding
	if embedding == nil {
		embedding = []float32{}
	}

	_, err := n.executeWrite(ctx, n.queries.UpsertContent(), map[string]any{
		"id":               c.ID,
		"title":            c.Title,
		"text":             c.Text,
		"type":             string(c.Type),
		"dataset":          c.Dataset,
		"start_time":       c.StartTime,
		"end_time":         c.EndTime,
		"source_order":     c.SourceOrder,
		"embedding":        embedding,
		"embedding_status": string(c.EmbeddingStatus),
		"now":              now,
	})
	return err
}

// UpsertSpeaker merges a speaker by normalized natural key. The returned
// speaker carries the identity that actually won: on a duplicate the
// first-seen id and display name are kept.
func (n *Neo4jDriver) UpsertSpeaker(ctx context.Context, dataset, name string) (*types.Speaker, error) {
	key := types.NormalizeKey(name)
	if key == "" {
		return nil, &types.ValidationError{Field: "speaker", Reason: "name is empty"}
	}

	records, err := n.executeWrite(ctx, n.queries.UpsertSpeaker(), map[string]any{
		"key":     key,
		"dataset": dataset,
		"id":      uuid.New().String(),
		"name":    strings.TrimSpace(name),
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("speaker upsert returned no record")
	}

	return &types.Speaker{
		ID:      asString(records[0]["id"]),
		Name:    asString(records[0]["name"]),
		Dataset: dataset,
	}, nil
}

// UpsertTopic merges a topic by normalized name.
func (n *Neo4jDriver) UpsertTopic(ctx context.Context, dataset string, topic types.DetectedTopic) (*types.Topic, error) {
	key := types.NormalizeKey(topic.Name)
	if key == "" {
		return nil, &types.ValidationError{Field: "topic", Reason: "name is empty"}
	}

	category := topic.Category
	if category == "" {
		category = types.TopicConcept
	}

	records, err := n.executeWrite(ctx, n.queries.UpsertTopic(), map[string]any{
		"key":      key,
		"dataset":  dataset,
		"id":       uuid.New().String(),
		"name":     strings.TrimSpace(topic.Name),
		"category": string(category),
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("topic upsert returned no record")
	}

	return &types.Topic{
		ID:       asString(records[0]["id"]),
		Name:     asString(records[0]["name"]),
		Category: types.TopicCategory(asString(records[0]["category"])),
		Dataset:  dataset,
	}, nil
}

// LinkHasSpeaker merges a HAS_SPEAKER relationship.
func (n *Neo4jDriver) LinkHasSpeaker(ctx context.Context, contentID, speakerID string) error {
	_, err := n.executeWrite(ctx, n.queries.LinkHasSpeaker(), map[string]any{
		"content_id": contentID,
		"speaker_id": speakerID,
	})
	return err
}

// LinkMentions merges a MENTIONS relationship.
func (n *Neo4jDriver) LinkMentions(ctx context.Context, contentID, topicID string) error {
	_, err := n.executeWrite(ctx, n.queries.LinkMentions(), map[string]any{
		"content_id": contentID,
		"topic_id":   topicID,
	})
	return err
}

// LinkFollows merges a FOLLOWS relationship.
func (n *Neo4jDriver) LinkFollows(ctx context.Context, fromID, toID string) error {
	_, err := n.executeWrite(ctx, n.queries.LinkFollows(), map[string]any{
		"from_id": fromID,
		"to_id":   toID,
	})
	return err
}

// SearchContentByVector performs nearest-neighbor search on the content
// vector index.
func (n *Neo4jDriver) SearchContentByVector(ctx context.Context, embedding []float32, dataset string, topK int) ([]ScoredContent, error) {
	if len(embedding) == 0 || topK <= 0 {
		return []ScoredContent{}, nil
	}

	cypher, err := n.queries.VectorSearch()
	if err != nil {
		return nil, err
	}

	records, err := n.executeRead(ctx, cypher, map[string]any{
		"embedding": embedding,
		"dataset":   dataset,
		"top_k":     topK,
	})
	if err != nil {
		return nil, err
	}

	return scoredFromRecords(records), nil
}

// SearchContentFulltext queries the content full-text index.
func (n *Neo4jDriver) SearchContentFulltext(ctx context.Context, query, dataset string, topK int) ([]ScoredContent, error) {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return []ScoredContent{}, nil
	}

	cypher, err := n.queries.FulltextSearch()
	if err != nil {
		return nil, err
	}

	records, err := n.executeRead(ctx, cypher, map[string]any{
		"query":   query,
		"dataset": dataset,
		"top_k":   topK,
	})
	if err != nil {
		return nil, err
	}

	return scoredFromRecords(records), nil
}

// GetNeighborhood expands from seed content ids out to maxHops hops.
func (n *Neo4jDriver) GetNeighborhood(ctx context.Context, seedIDs []string, dataset string, maxHops int) ([]Neighbor, error) {
	if len(seedIDs) == 0 || maxHops < 1 {
		return []Neighbor{}, nil
	}

	records, err := n.executeRead(ctx, n.queries.Neighborhood(maxHops), map[string]any{
		"seed_ids": seedIDs,
		"dataset":  dataset,
	})
	if err != nil {
		return nil, err
	}

	neighbors := make([]Neighbor, 0, len(records))
	for _, record := range records {
		node, ok := record["n"].(dbtype.Node)
		if !ok {
			continue
		}
		hops, _ := record["hops"].(int64)
		neighbors = append(neighbors, Neighbor{
			Content: contentFromNode(node),
			SeedID:  asString(record["seed_id"]),
			Hops:    int(hops),
		})
	}
	return neighbors, nil
}

// GetPendingEmbeddings lists content nodes still waiting for a vector,
// oldest source order first.
func (n *Neo4jDriver) GetPendingEmbeddings(ctx context.Context, dataset string, limit int) ([]*types.Content, error) {
	if limit <= 0 {
		return []*types.Content{}, nil
	}

	records, err := n.executeRead(ctx, n.queries.PendingEmbeddings(), map[string]any{
		"dataset": dataset,
		"limit":   limit,
	})
	if err != nil {
		return nil, err
	}

	pending := make([]*types.Content, 0, len(records))
	for _, record := range records {
		if node, ok := record["node"].(dbtype.Node); ok {
			pending = append(pending, contentFromNode(node))
		}
	}
	return pending, nil
}

// AttachEmbedding backfills a vector onto a pending content node.
func (n *Neo4jDriver) AttachEmbedding(ctx context.Context, contentID string, embedding []float32) error {
	if len(embedding) == 0 {
		return &types.ValidationError{Field: "embedding", Reason: "vector is empty"}
	}

	_, err := n.executeWrite(ctx, n.queries.AttachEmbedding(), map[string]any{
		"id":        contentID,
		"embedding": embedding,
		"now":       time.Now().UTC(),
	})
	return err
}

// GetContentChain walks FOLLOWS from the first segment of a dataset,
// returning content in source order.
func (n *Neo4jDriver) GetContentChain(ctx context.Context, dataset string) ([]*types.Content, error) {
	records, err := n.executeRead(ctx, n.queries.ContentChain(), map[string]any{
		"dataset": dataset,
	})
	if err != nil {
		return nil, err
	}

	chain := make([]*types.Content, 0, len(records))
	for _, record := range records {
		if node, ok := record["n"].(dbtype.Node); ok {
			chain = append(chain, contentFromNode(node))
		}
	}
	return chain, nil
}

// CreateIndices bootstraps the constraints and indexes the registry
// declares. Idempotent: existing declarations are skipped.
func (n *Neo4jDriver) CreateIndices(ctx context.Context) error {
	statements := n.queries.ConstraintStatements()

	indexStatements, err := n.queries.IndexStatements()
	if err != nil {
		return err
	}
	statements = append(statements, indexStatements...)

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "An equivalent") {
				continue
			}
			return classifyError(err)
		}
	}
	return nil
}

// Stats counts nodes and relationships in one dataset partition.
func (n *Neo4jDriver) Stats(ctx context.Context, dataset string) (*GraphStats, error) {
	records, err := n.executeRead(ctx, n.queries.StatsQuery(), map[string]any{
		"dataset": dataset,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &GraphStats{LastUpdated: time.Now().UTC()}, nil
	}

	record := records[0]
	return &GraphStats{
		Contents:    asInt64(record["contents"]),
		Speakers:    asInt64(record["speakers"]),
		Topics:      asInt64(record["topics"]),
		HasSpeaker:  asInt64(record["has_speaker"]),
		Mentions:    asInt64(record["mentions"]),
		Follows:     asInt64(record["follows"]),
		LastUpdated: time.Now().UTC(),
	}, nil
}

// ClearDataset removes every node and relationship in a dataset partition.
func (n *Neo4jDriver) ClearDataset(ctx context.Context, dataset string) error {
	_, err := n.executeWrite(ctx, n.queries.ClearDataset(), map[string]any{
		"dataset": dataset,
	})
	return err
}

// Close shuts down the underlying connection pool.
func (n *Neo4jDriver) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

func (n *Neo4jDriver) executeRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, classifyError(err)
	}

	return recordsToMaps(result.([]*db.Record)), nil
}

func (n *Neo4jDriver) executeWrite(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, classifyError(err)
	}

	return recordsToMaps(result.([]*db.Record)), nil
}

func recordsToMaps(records []*db.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		out = append(out, record.AsMap())
	}
	return out
}

// classifyError wraps a Neo4j failure into a StoreError so callers can make
// retry decisions without importing driver internals.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) {
		kind := KindQuery
		switch {
		case strings.Contains(neoErr.Code, "ConstraintValidationFailed"),
			strings.Contains(neoErr.Code, "Schema.ConstraintViolation"):
			kind = KindConstraintViolation
		case strings.HasPrefix(neoErr.Code, "Neo.TransientError"),
			neoErr.IsRetriable():
			kind = KindTransient
		}
		return &StoreError{Kind: kind, Code: neoErr.Code, Err: err}
	}

	if neo4j.IsConnectivityError(err) {
		return &StoreError{Kind: KindTransient, Err: err}
	}

	return &StoreError{Kind: KindQuery, Err: err}
}

func scoredFromRecords(records []map[string]any) []ScoredContent {
	results := make([]ScoredContent, 0, len(records))
	for _, record := range records {
		node, ok := record["node"].(dbtype.Node)
		if !ok {
			continue
		}
		score, _ := record["score"].(float64)
		results = append(results, ScoredContent{
			Content: contentFromNode(node),
			Score:   score,
		})
	}
	return results
}

func contentFromNode(node dbtype.Node) *types.Content {
	props := node.Props
	c := &types.Content{
		ID:              asString(props["id"]),
		Title:           asString(props["title"]),
		Text:            asString(props["text"]),
		Type:            types.ContentType(asString(props["type"])),
		Dataset:         asString(props["dataset"]),
		EmbeddingStatus: types.EmbeddingStatus(asString(props["embedding_status"])),
		StartTime:       asFloat64(props["start_time"]),
		EndTime:         asFloat64(props["end_time"]),
		SourceOrder:     int(asInt64(props["source_order"])),
	}
	if ts, ok := props["created_at"].(time.Time); ok {
		c.CreatedAt = ts
	}
	if ts, ok := props["updated_at"].(time.Time); ok {
		c.UpdatedAt = ts
	}
	if raw, ok := props["embedding"].([]any); ok {
		embedding := make([]float32, 0, len(raw))
		for _, v := range raw {
			embedding = append(embedding, float32(asFloat64(v)))
		}
		c.Embedding = embedding
	}
	return c
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
