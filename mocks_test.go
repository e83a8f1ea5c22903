package graphrag

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/donbr/graphrag-platform/pkg/driver"
	"github.com/donbr/graphrag-platform/pkg/types"
)

// memoryDriver is an in-memory GraphDriver with MERGE-like upsert semantics,
// enough to exercise ingestion and retrieval without a store.
type memoryDriver struct {
	mu sync.Mutex

	contents map[string]*types.Content
	speakers map[string]*types.Speaker // keyed by dataset + normalized name
	topics   map[string]*types.Topic   // keyed by dataset + normalized name

	hasSpeaker map[string]string   // contentID -> speakerID
	mentions   map[string][]string // contentID -> topicIDs
	follows    map[string]string   // fromID -> toID

	vectorResults   []driver.ScoredContent
	fulltextResults []driver.ScoredContent
	neighbors       []driver.Neighbor
	queryRows       []map[string]any

	vectorErr   error
	fulltextErr error
	queryErr    error
	upsertErr   error

	executedQueries []string
	fulltextDelay   time.Duration

	followsFailOn int // 1-based LinkFollows call that fails; 0 never fails
	followsCalls  int
}

func newMemoryDriver() *memoryDriver {
	return &memoryDriver{
		contents:   map[string]*types.Content{},
		speakers:   map[string]*types.Speaker{},
		topics:     map[string]*types.Topic{},
		hasSpeaker: map[string]string{},
		mentions:   map[string][]string{},
		follows:    map[string]string{},
	}
}

func (m *memoryDriver) ExecuteQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executedQueries = append(m.executedQueries, cypher)
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryRows, nil
}

func (m *memoryDriver) UpsertContent(ctx context.Context, c *types.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *c
	m.contents[c.ID] = &cp
	return nil
}

func (m *memoryDriver) UpsertSpeaker(ctx context.Context, dataset, name string) (*types.Speaker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dataset + "/" + types.NormalizeKey(name)
	if s, ok := m.speakers[key]; ok {
		return s, nil
	}
	s := &types.Speaker{ID: fmt.Sprintf("speaker-%d", len(m.speakers)+1), Name: name, Dataset: dataset}
	m.speakers[key] = s
	return s, nil
}

func (m *memoryDriver) UpsertTopic(ctx context.Context, dataset string, topic types.DetectedTopic) (*types.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dataset + "/" + types.NormalizeKey(topic.Name)
	if t, ok := m.topics[key]; ok {
		return t, nil
	}
	t := &types.Topic{ID: fmt.Sprintf("topic-%d", len(m.topics)+1), Name: topic.Name, Category: topic.Category, Dataset: dataset}
	m.topics[key] = t
	return t, nil
}

func (m *memoryDriver) LinkHasSpeaker(ctx context.Context, contentID, speakerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasSpeaker[contentID] = speakerID
	return nil
}

func (m *memoryDriver) LinkMentions(ctx context.Context, contentID, topicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.mentions[contentID] {
		if existing == topicID {
			return nil
		}
	}
	m.mentions[contentID] = append(m.mentions[contentID], topicID)
	return nil
}

func (m *memoryDriver) LinkFollows(ctx context.Context, fromID, toID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followsCalls++
	if m.followsFailOn > 0 && m.followsCalls == m.followsFailOn {
		return fmt.Errorf("transient store outage")
	}
	m.follows[fromID] = toID
	return nil
}

func (m *memoryDriver) SearchContentByVector(ctx context.Context, embedding []float32, dataset string, topK int) ([]driver.ScoredContent, error) {
	if m.vectorErr != nil {
		return nil, m.vectorErr
	}
	return m.vectorResults, nil
}

func (m *memoryDriver) SearchContentFulltext(ctx context.Context, query, dataset string, topK int) ([]driver.ScoredContent, error) {
	if m.fulltextDelay > 0 {
		select {
		case <-time.After(m.fulltextDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.fulltextErr != nil {
		return nil, m.fulltextErr
	}
	return m.fulltextResults, nil
}

func (m *memoryDriver) GetNeighborhood(ctx context.Context, seedIDs []string, dataset string, maxHops int) ([]driver.Neighbor, error) {
	return m.neighbors, nil
}

func (m *memoryDriver) GetPendingEmbeddings(ctx context.Context, dataset string, limit int) ([]*types.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*types.Content
	for _, c := range m.contents {
		if c.Dataset == dataset && c.EmbeddingStatus == types.EmbeddingPending {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].SourceOrder < pending[j].SourceOrder })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *memoryDriver) AttachEmbedding(ctx context.Context, contentID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contents[contentID]
	if !ok {
		return fmt.Errorf("content %s not found", contentID)
	}
	c.Embedding = embedding
	c.EmbeddingStatus = types.EmbeddingPresent
	return nil
}

func (m *memoryDriver) GetContentChain(ctx context.Context, dataset string) ([]*types.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	incoming := map[string]bool{}
	for _, to := range m.follows {
		incoming[to] = true
	}
	var head *types.Content
	for id, c := range m.contents {
		if c.Type == types.ContentTypeSegment && !incoming[id] {
			if head == nil || c.SourceOrder < head.SourceOrder {
				head = c
			}
		}
	}
	var chain []*types.Content
	for cur := head; cur != nil; {
		chain = append(chain, cur)
		next, ok := m.follows[cur.ID]
		if !ok {
			break
		}
		cur = m.contents[next]
	}
	return chain, nil
}

func (m *memoryDriver) CreateIndices(ctx context.Context) error { return nil }

func (m *memoryDriver) Stats(ctx context.Context, dataset string) (*driver.GraphStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &driver.GraphStats{
		Contents: int64(len(m.contents)),
		Speakers: int64(len(m.speakers)),
		Topics:   int64(len(m.topics)),
		Mentions: int64(len(m.mentions)),
		Follows:  int64(len(m.follows)),
	}, nil
}

func (m *memoryDriver) ClearDataset(ctx context.Context, dataset string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents = map[string]*types.Content{}
	m.speakers = map[string]*types.Speaker{}
	m.topics = map[string]*types.Topic{}
	m.follows = map[string]string{}
	return nil
}

func (m *memoryDriver) Close(ctx context.Context) error { return nil }

// stubEmbedder produces fixed-width vectors without a provider. The call
// counter is mutex-guarded because ingestion invokes it from concurrent
// workers.
type stubEmbedder struct {
	mu    sync.Mutex
	dims  int
	err   error
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vec, err := s.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	vec := make([]float32, s.dims)
	for i := range vec {
		vec[i] = float32(len(text)%7) / 7
	}
	return vec, nil
}

func (s *stubEmbedder) Dimensions() int { return s.dims }
func (s *stubEmbedder) Close() error    { return nil }

// stubNLP replays scripted responses.
type stubNLP struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubNLP) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	content := ""
	if idx < len(s.responses) {
		content = s.responses[idx]
	}
	return &types.Response{Content: content}, nil
}

func (s *stubNLP) Close() error { return nil }

func newTestClient(t interface{ Fatalf(string, ...any) }, d driver.GraphDriver, e *stubEmbedder, n *stubNLP) *Client {
	var c *Client
	var err error
	if n != nil {
		c, err = NewClient(d, e, n, nil, nil, nil)
	} else {
		c, err = NewClient(d, e, nil, nil, nil, nil)
	}
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func content(id string, order int, endTime float64) *types.Content {
	return &types.Content{
		ID:          id,
		Title:       "title " + id,
		Text:        "text " + id,
		Type:        types.ContentTypeSegment,
		SourceOrder: order,
		EndTime:     endTime,
	}
}
