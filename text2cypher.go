package graphrag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/donbr/graphrag-platform/pkg/driver"
	"github.com/donbr/graphrag-platform/pkg/nlp"
	"github.com/donbr/graphrag-platform/pkg/schema"
	"github.com/donbr/graphrag-platform/pkg/types"
)

// TranslationError reports that NL-to-Cypher translation produced nothing
// executable. The router treats it as a signal to fall back, never as a
// request failure.
type TranslationError struct {
	Question string
	Err      error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("cypher translation failed for %q: %v", e.Question, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Is implements errors.Is support for TranslationError.
func (e *TranslationError) Is(target error) bool {
	_, ok := target.(*TranslationError)
	return ok
}

const text2cypherSystemPrompt = `You translate natural-language questions about a knowledge graph of video transcripts into Cypher.

Graph schema:
%s
Rules:
- Produce exactly one read-only Cypher query. Never use CREATE, MERGE, SET, DELETE, REMOVE or DROP.
- Filter on {dataset: $dataset} when matching nodes.
- Return content rows with these aliases: id, title, text, type, start_time, end_time.
- Always end with LIMIT $top_k.
- Use query parameters for literal values and list them under "params".

Respond with JSON only:
{"cypher": "<query>", "params": {"<name>": <value>}}`

// translation is the JSON shape the model is prompted to produce.
type translation struct {
	Cypher string         `json:"cypher"`
	Params map[string]any `json:"params"`
}

var writeClausePattern = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH)\b`)

// Text2CypherRetriever answers structural questions by asking the language
// model to translate them into parameterized read-only Cypher, grounded on
// the schema registry's vocabulary.
type Text2CypherRetriever struct {
	driver   driver.GraphDriver
	nlp      nlp.Client
	registry *schema.Registry
	logger   *slog.Logger
}

// NewText2CypherRetriever creates a translation-backed retriever.
func NewText2CypherRetriever(d driver.GraphDriver, nlpClient nlp.Client, registry *schema.Registry, logger *slog.Logger) *Text2CypherRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Text2CypherRetriever{driver: d, nlp: nlpClient, registry: registry, logger: logger}
}

// Retrieve implements Retriever. Every failure mode short of a context
// cancellation surfaces as a *TranslationError so the router can fall back.
func (r *Text2CypherRetriever) Retrieve(ctx context.Context, question string, topK int, filters *Filters) ([]types.RetrievedItem, error) {
	if r.nlp == nil {
		return nil, &TranslationError{Question: question, Err: errRetrieverUnavailable}
	}

	messages := []types.Message{
		nlp.NewSystemMessage(fmt.Sprintf(text2cypherSystemPrompt, r.registry.Vocabulary())),
		nlp.NewUserMessage(question),
	}
	resp, err := r.nlp.Chat(ctx, messages)
	if err != nil {
		return nil, &TranslationError{Question: question, Err: err}
	}

	t, err := parseTranslation(resp.Content)
	if err != nil {
		return nil, &TranslationError{Question: question, Err: err}
	}

	cypher, err := validateReadOnly(t.Cypher)
	if err != nil {
		return nil, &TranslationError{Question: question, Err: err}
	}

	params := t.Params
	if params == nil {
		params = map[string]any{}
	}
	params["dataset"] = filters.dataset()
	params["top_k"] = topK

	r.logger.Debug("executing translated query", "cypher", cypher)
	rows, err := r.driver.ExecuteQuery(ctx, cypher, params)
	if err != nil {
		return nil, &TranslationError{Question: question, Err: err}
	}

	return itemsFromRows(rows, topK), nil
}

// parseTranslation extracts the translation JSON from a model response,
// stripping markdown fences and repairing malformed JSON before decoding.
func parseTranslation(content string) (*translation, error) {
	content = stripCodeFences(content)

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		repaired = content
	}

	var t translation
	if err := json.Unmarshal([]byte(repaired), &t); err != nil {
		return nil, fmt.Errorf("unparsable translation output: %w", err)
	}
	if strings.TrimSpace(t.Cypher) == "" {
		return nil, fmt.Errorf("translation produced no query")
	}
	return &t, nil
}

// validateReadOnly rejects queries containing write clauses and guarantees
// the query is bounded by a LIMIT.
func validateReadOnly(cypher string) (string, error) {
	cypher = strings.TrimSpace(cypher)
	if m := writeClausePattern.FindString(cypher); m != "" {
		return "", fmt.Errorf("generated query contains write clause %q", strings.ToUpper(m))
	}
	if !strings.Contains(strings.ToUpper(cypher), "LIMIT") {
		cypher = cypher + " LIMIT $top_k"
	}
	return cypher, nil
}

// itemsFromRows maps result rows onto retrieved items. Rank order stands in
// for relevance since a declarative query carries no similarity score.
func itemsFromRows(rows []map[string]any, topK int) []types.RetrievedItem {
	items := make([]types.RetrievedItem, 0, len(rows))
	for i, row := range rows {
		if topK > 0 && i >= topK {
			break
		}
		content := &types.Content{
			ID:        stringValue(row["id"]),
			Title:     stringValue(row["title"]),
			Text:      stringValue(row["text"]),
			Type:      types.ContentType(stringValue(row["type"])),
			StartTime: floatValue(row["start_time"]),
			EndTime:   floatValue(row["end_time"]),
		}
		if content.ID == "" && content.Text == "" {
			continue
		}
		items = append(items, types.RetrievedItem{
			Content:    content,
			Score:      1.0 / float64(i+1),
			Provenance: types.Provenance{Strategy: StrategyText2Cypher},
		})
	}
	return items
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
