package graphrag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/donbr/graphrag-platform/pkg/nlp"
	"github.com/donbr/graphrag-platform/pkg/types"
)

// SearchOptions tunes a single routed search.
type SearchOptions struct {
	// Strategy forces a retriever instead of heuristic classification.
	// One of vector, traversal, hybrid, text2cypher. Empty lets the router
	// classify.
	Strategy string `json:"strategy,omitempty"`
	// TopK overrides the configured result count.
	TopK int `json:"top_k,omitempty"`
	// Filters narrow the searched graph slice.
	Filters *Filters `json:"filters,omitempty"`
}

// Synthesizer turns a question and retrieved context into a natural-language
// answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, sources []types.RetrievedItem) (string, error)
}

const synthesizeSystemPrompt = `You answer questions about video transcripts using only the provided context.
If the context does not contain the answer, say so. Cite segment titles where useful.`

// LLMSynthesizer prompts a language model with the question and the
// retrieved documents.
type LLMSynthesizer struct {
	nlp nlp.Client
}

// NewLLMSynthesizer creates the default synthesizer over an nlp client.
func NewLLMSynthesizer(client nlp.Client) *LLMSynthesizer {
	return &LLMSynthesizer{nlp: client}
}

// Synthesize implements Synthesizer.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, question string, sources []types.RetrievedItem) (string, error) {
	var b strings.Builder
	for i, item := range sources {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, item.Content.Title, item.Content.Text)
	}

	messages := []types.Message{
		nlp.NewSystemMessage(synthesizeSystemPrompt),
		nlp.NewUserMessage(fmt.Sprintf("Context:\n%s\nQuestion: %s", b.String(), question)),
	}
	resp, err := s.nlp.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// structuralPattern spots questions whose answer depends on explicit graph
// relationships rather than semantic similarity.
var structuralPattern = regexp.MustCompile(`(?i)\b(who (said|says|spoke|mentioned|talks? about)|which speaker|what (follows|comes (after|before|next))|how many (segments|speakers|topics)|list (all|the) (speakers|topics|segments))\b`)

// Search routes a question through classification, retrieval and synthesis.
// At most two strategy attempts happen per question. Synthesis failure
// degrades the result to retrieved-only; zero results across both attempts
// is the empty outcome, not an error.
func (c *Client) Search(ctx context.Context, question string, opts *SearchOptions) (*types.SearchResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if opts == nil {
		opts = &SearchOptions{}
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = c.config.TopK
	}

	primary, fallback := c.classify(question, opts.Strategy)
	c.logger.Debug("classified question", "primary", primary, "fallback", fallback)

	sources, strategyUsed := c.retrieveWithFallback(ctx, question, topK, opts.Filters, primary, fallback)
	if len(sources) == 0 {
		return &types.SearchResult{
			Sources:      []types.RetrievedItem{},
			StrategyUsed: strategyUsed,
			Outcome:      types.OutcomeEmpty,
		}, nil
	}

	result := &types.SearchResult{
		Sources:      sources,
		StrategyUsed: strategyUsed,
		Outcome:      types.OutcomeRetrievedOnly,
	}
	if c.synthesizer == nil {
		return result, nil
	}

	answer, err := c.synthesizer.Synthesize(ctx, question, sources)
	if err != nil {
		c.logger.Warn("answer synthesis failed, returning sources only", "error", err)
		return result, nil
	}
	result.Answer = answer
	result.Outcome = types.OutcomeAnswered
	return result, nil
}

// classify picks a primary strategy and at most one fallback. An explicit
// override wins and gets no fallback; otherwise structural questions go to
// translation and semantic questions to vector search, both falling back to
// hybrid.
func (c *Client) classify(question, override string) (primary, fallback string) {
	switch override {
	case StrategyVector, StrategyTraversal, StrategyHybrid, StrategyText2Cypher:
		return override, ""
	}

	if structuralPattern.MatchString(question) && c.nlp != nil {
		return StrategyText2Cypher, StrategyHybrid
	}
	return StrategyVector, StrategyHybrid
}

func (c *Client) retrieveWithFallback(ctx context.Context, question string, topK int, filters *Filters, primary, fallback string) ([]types.RetrievedItem, string) {
	sources, err := c.retriever(primary).Retrieve(ctx, question, topK, filters)
	if err != nil {
		c.logger.Warn("retrieval attempt failed", "strategy", primary, "error", err)
		sources = nil
	}
	if len(sources) > 0 || fallback == "" {
		return sources, primary
	}
	if ctx.Err() != nil {
		return sources, primary
	}

	sources, err = c.retriever(fallback).Retrieve(ctx, question, topK, filters)
	if err != nil {
		c.logger.Warn("fallback retrieval failed", "strategy", fallback, "error", err)
		return nil, fallback
	}
	return sources, fallback
}

// retriever builds the named strategy over the client's collaborators.
func (c *Client) retriever(name string) Retriever {
	vector := NewVectorRetriever(c.driver, c.embedder, c.logger)
	switch name {
	case StrategyTraversal:
		return NewTraversalRetriever(c.driver, vector, c.config.HopDecay, c.config.MaxHops, c.logger)
	case StrategyHybrid:
		return NewHybridRetriever(c.driver, vector, c.config.VectorWeight, c.config.FulltextWeight, c.config.SubQueryTimeout, c.logger)
	case StrategyText2Cypher:
		return NewText2CypherRetriever(c.driver, c.nlp, c.registry, c.logger)
	default:
		return vector
	}
}
