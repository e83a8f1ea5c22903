package graphrag

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/donbr/graphrag-platform/pkg/driver"
	"github.com/donbr/graphrag-platform/pkg/embedder"
	"github.com/donbr/graphrag-platform/pkg/types"
)

// Strategy names as they appear in search requests and provenance.
const (
	StrategyVector      = "vector"
	StrategyTraversal   = "traversal"
	StrategyHybrid      = "hybrid"
	StrategyText2Cypher = "text2cypher"
)

// Filters narrow a retrieval to a slice of the graph.
type Filters struct {
	// Dataset restricts results to one ingestion partition. Empty matches
	// the default dataset.
	Dataset string `json:"dataset,omitempty"`
}

func (f *Filters) dataset() string {
	if f == nil {
		return ""
	}
	return f.Dataset
}

// Retriever is the contract every retrieval strategy implements. Results
// are ordered by descending relevance, at most topK of them; "no results"
// is an empty slice, never an error.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int, filters *Filters) ([]types.RetrievedItem, error)
}

// VectorRetriever embeds the question and runs nearest-neighbor search
// against the content vector index.
type VectorRetriever struct {
	driver   driver.GraphDriver
	embedder embedder.Client
	logger   *slog.Logger
}

// NewVectorRetriever creates a vector similarity retriever.
func NewVectorRetriever(d driver.GraphDriver, e embedder.Client, logger *slog.Logger) *VectorRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorRetriever{driver: d, embedder: e, logger: logger}
}

// Retrieve implements Retriever.
func (r *VectorRetriever) Retrieve(ctx context.Context, question string, topK int, filters *Filters) ([]types.RetrievedItem, error) {
	vec, err := r.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, err
	}

	scored, err := r.driver.SearchContentByVector(ctx, vec, filters.dataset(), topK)
	if err != nil {
		return nil, err
	}

	items := make([]types.RetrievedItem, 0, len(scored))
	for _, s := range scored {
		items = append(items, types.RetrievedItem{
			Content:    s.Content,
			Score:      s.Score,
			Provenance: types.Provenance{Strategy: StrategyVector},
		})
	}
	return items, nil
}

// TraversalRetriever obtains vector seeds and expands them over the graph's
// relationships up to a bounded hop count, decaying the seed's score per hop.
type TraversalRetriever struct {
	driver driver.GraphDriver
	vector *VectorRetriever
	decay  float64
	hops   int
	logger *slog.Logger
}

// NewTraversalRetriever creates a traversal retriever. decay is the score
// multiplier applied once per hop; maxHops bounds the expansion.
func NewTraversalRetriever(d driver.GraphDriver, vector *VectorRetriever, decay float64, maxHops int, logger *slog.Logger) *TraversalRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &TraversalRetriever{driver: d, vector: vector, decay: decay, hops: maxHops, logger: logger}
}

// Retrieve implements Retriever.
func (r *TraversalRetriever) Retrieve(ctx context.Context, question string, topK int, filters *Filters) ([]types.RetrievedItem, error) {
	seeds, err := r.vector.Retrieve(ctx, question, topK, filters)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return []types.RetrievedItem{}, nil
	}

	seedScores := make(map[string]float64, len(seeds))
	seedIDs := make([]string, 0, len(seeds))
	best := make(map[string]types.RetrievedItem, len(seeds))
	for _, s := range seeds {
		seedIDs = append(seedIDs, s.Content.ID)
		seedScores[s.Content.ID] = s.Score
		s.Provenance.Strategy = StrategyTraversal
		best[s.Content.ID] = s
	}

	neighbors, err := r.driver.GetNeighborhood(ctx, seedIDs, filters.dataset(), r.hops)
	if err != nil {
		return nil, err
	}

	for _, n := range neighbors {
		score := seedScores[n.SeedID] * math.Pow(r.decay, float64(n.Hops))
		item := types.RetrievedItem{
			Content:    n.Content,
			Score:      score,
			Provenance: types.Provenance{Strategy: StrategyTraversal, Hops: n.Hops},
		}
		// Dedup by id keeping the best score.
		if prev, ok := best[n.Content.ID]; !ok || item.Score > prev.Score {
			best[n.Content.ID] = item
		}
	}

	items := make([]types.RetrievedItem, 0, len(best))
	for _, item := range best {
		items = append(items, item)
	}
	sortItems(items)
	return truncate(items, topK), nil
}

// HybridRetriever runs vector and full-text sub-queries concurrently and
// merges them by a weighted sum of min-max normalized scores.
type HybridRetriever struct {
	driver         driver.GraphDriver
	vector         *VectorRetriever
	vectorWeight   float64
	fulltextWeight float64
	subTimeout     time.Duration
	logger         *slog.Logger
}

// NewHybridRetriever creates a hybrid retriever with the given merge weights.
func NewHybridRetriever(d driver.GraphDriver, vector *VectorRetriever, vectorWeight, fulltextWeight float64, subTimeout time.Duration, logger *slog.Logger) *HybridRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	if vectorWeight <= 0 && fulltextWeight <= 0 {
		vectorWeight, fulltextWeight = 0.5, 0.5
	}
	if subTimeout <= 0 {
		subTimeout = 10 * time.Second
	}
	return &HybridRetriever{
		driver:         d,
		vector:         vector,
		vectorWeight:   vectorWeight,
		fulltextWeight: fulltextWeight,
		subTimeout:     subTimeout,
		logger:         logger,
	}
}

// Retrieve implements Retriever.
func (r *HybridRetriever) Retrieve(ctx context.Context, question string, topK int, filters *Filters) ([]types.RetrievedItem, error) {
	var (
		wg        sync.WaitGroup
		vecItems  []types.RetrievedItem
		textItems []driver.ScoredContent
	)

	// The two sub-queries are independent reads; a timed-out or failed
	// sub-query contributes nothing instead of failing the call.
	wg.Add(2)
	go func() {
		defer wg.Done()
		subCtx, cancel := context.WithTimeout(ctx, r.subTimeout)
		defer cancel()
		items, err := r.vector.Retrieve(subCtx, question, topK, filters)
		if err != nil {
			r.logger.Warn("hybrid vector sub-query failed", "error", err)
			return
		}
		vecItems = items
	}()
	go func() {
		defer wg.Done()
		subCtx, cancel := context.WithTimeout(ctx, r.subTimeout)
		defer cancel()
		scored, err := r.driver.SearchContentFulltext(subCtx, question, filters.dataset(), topK)
		if err != nil {
			r.logger.Warn("hybrid full-text sub-query failed", "error", err)
			return
		}
		textItems = scored
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil && len(vecItems) == 0 && len(textItems) == 0 {
		return nil, err
	}

	merged := mergeHybrid(vecItems, textItems, r.vectorWeight, r.fulltextWeight)
	return truncate(merged, topK), nil
}

// mergeHybrid combines the two ranked lists: each list's scores are min-max
// normalized to [0,1], then summed with the configured weights. The merge is
// a pure function of its inputs, so identical sub-results always produce an
// identical ordering.
func mergeHybrid(vecItems []types.RetrievedItem, textItems []driver.ScoredContent, vectorWeight, fulltextWeight float64) []types.RetrievedItem {
	wSum := vectorWeight + fulltextWeight
	wVec := vectorWeight / wSum
	wText := fulltextWeight / wSum

	vecScores := make([]float64, len(vecItems))
	for i, it := range vecItems {
		vecScores[i] = it.Score
	}
	textScores := make([]float64, len(textItems))
	for i, it := range textItems {
		textScores[i] = it.Score
	}
	normVec := minMaxNormalize(vecScores)
	normText := minMaxNormalize(textScores)

	type candidate struct {
		content *types.Content
		score   float64
	}
	byID := make(map[string]*candidate)

	for i, it := range vecItems {
		byID[it.Content.ID] = &candidate{content: it.Content, score: wVec * normVec[i]}
	}
	for i, it := range textItems {
		if cand, ok := byID[it.Content.ID]; ok {
			cand.score += wText * normText[i]
			continue
		}
		byID[it.Content.ID] = &candidate{content: it.Content, score: wText * normText[i]}
	}

	items := make([]types.RetrievedItem, 0, len(byID))
	for _, cand := range byID {
		items = append(items, types.RetrievedItem{
			Content:    cand.content,
			Score:      cand.score,
			Provenance: types.Provenance{Strategy: StrategyHybrid},
		})
	}
	sortItems(items)
	return items
}

// minMaxNormalize rescales scores into [0,1]. A single-element or constant
// list maps to 1.0 so a lone result still carries full weight.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

// sortItems orders by descending score, breaking ties by the more recent
// source timestamp, then by id for full determinism.
func sortItems(items []types.RetrievedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Content.EndTime != items[j].Content.EndTime {
			return items[i].Content.EndTime > items[j].Content.EndTime
		}
		return items[i].Content.ID < items[j].Content.ID
	})
}

func truncate(items []types.RetrievedItem, topK int) []types.RetrievedItem {
	if topK > 0 && len(items) > topK {
		return items[:topK]
	}
	if items == nil {
		return []types.RetrievedItem{}
	}
	return items
}

var errRetrieverUnavailable = errors.New("retriever unavailable")
