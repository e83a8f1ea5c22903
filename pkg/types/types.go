package types

import (
	"fmt"
	"strings"
	"time"
)

// ContentType classifies a unit of ingested material.
type ContentType string

const (
	// ContentTypeSegment is a single transcript segment.
	ContentTypeSegment ContentType = "segment"
	// ContentTypeVideo is a whole-video summary node.
	ContentTypeVideo ContentType = "video"
	// ContentTypeCodeBlock is a code block detected inside a segment.
	ContentTypeCodeBlock ContentType = "code-block"
)

// EmbeddingStatus tracks the two-phase embedding state of a Content node.
// Vector queries only consider nodes whose status is EmbeddingPresent, so a
// deferred backfill never surfaces half-ingested nodes in search results.
type EmbeddingStatus string

const (
	EmbeddingPresent EmbeddingStatus = "present"
	EmbeddingPending EmbeddingStatus = "pending"
)

// TopicCategory distinguishes the two classes of detected topics.
type TopicCategory string

const (
	TopicTechnicalTerm TopicCategory = "technical-term"
	TopicConcept       TopicCategory = "concept"
)

// Content is a unit of ingested material carrying text and an optional
// embedding. Relationships (HAS_SPEAKER, MENTIONS, FOLLOWS) live in the
// graph store, not on the struct.
type Content struct {
	ID              string          `json:"id"`
	Title           string          `json:"title,omitempty"`
	Text            string          `json:"text"`
	Type            ContentType     `json:"type"`
	Dataset         string          `json:"dataset"`
	StartTime       float64         `json:"start_time"`
	EndTime         float64         `json:"end_time"`
	SourceOrder     int             `json:"source_order"`
	Embedding       []float32       `json:"embedding,omitempty"`
	EmbeddingStatus EmbeddingStatus `json:"embedding_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Speaker is a diarized speaker identity, deduplicated by natural key (name).
type Speaker struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Dataset string `json:"dataset"`
}

// Topic is a detected entity or technical term, deduplicated by normalized name.
type Topic struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Category TopicCategory `json:"category"`
	Dataset  string        `json:"dataset"`
}

// DetectedTopic is a topic reference as produced by the entity detector
// upstream of ingestion, before deduplication.
type DetectedTopic struct {
	Name     string        `json:"name"`
	Category TopicCategory `json:"category"`
}

// Segment is one record of the ingestion input: a transcript segment with
// optional speaker label, detected topics, and an optional precomputed
// embedding. Order is the segment's position in the source transcript and
// drives FOLLOWS linking regardless of ingestion concurrency.
type Segment struct {
	ID         string          `json:"id"`
	Title      string          `json:"title,omitempty"`
	Text       string          `json:"text"`
	Order      int             `json:"order"`
	StartTime  float64         `json:"start_time"`
	EndTime    float64         `json:"end_time"`
	Speaker    string          `json:"speaker,omitempty"`
	Topics     []DetectedTopic `json:"topics,omitempty"`
	CodeBlocks []string        `json:"code_blocks,omitempty"`
	Embedding  []float32       `json:"embedding,omitempty"`
}

// VideoMetadata describes a processed source video. Produced by the
// video/transcription collaborators; the constructor only reads it.
type VideoMetadata struct {
	VideoID     string   `json:"video_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	UploadDate  string   `json:"upload_date"`
	Duration    int      `json:"duration"`
	Tags        []string `json:"tags,omitempty"`
	Speakers    []string `json:"speakers,omitempty"`
}

// SegmentFailure records why a single segment was not ingested.
type SegmentFailure struct {
	SegmentID string `json:"segment_id"`
	Reason    string `json:"reason"`
}

// IngestReport summarizes a batch ingestion. Partial failure is first-class:
// a non-empty Failed list does not make the batch an error.
type IngestReport struct {
	Dataset   string           `json:"dataset"`
	Succeeded int              `json:"succeeded"`
	Skipped   int              `json:"skipped"`
	Failed    []SegmentFailure `json:"failed,omitempty"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Provenance records how a retrieved item was found.
type Provenance struct {
	Strategy string `json:"strategy"`
	Hops     int    `json:"hops,omitempty"`
}

// RetrievedItem is one entry of a strategy's ranked output.
type RetrievedItem struct {
	Content    *Content   `json:"content"`
	Score      float64    `json:"score"`
	Provenance Provenance `json:"provenance"`
}

// Outcome is the terminal state of a routed search.
type Outcome string

const (
	// OutcomeAnswered means retrieval and synthesis both succeeded.
	OutcomeAnswered Outcome = "answered"
	// OutcomeRetrievedOnly means sources were found but synthesis failed
	// or was unavailable.
	OutcomeRetrievedOnly Outcome = "retrieved-only"
	// OutcomeEmpty means no strategy produced results.
	OutcomeEmpty Outcome = "empty"
)

// SearchResult is the structured result of the query-facing search operation.
type SearchResult struct {
	Answer       string          `json:"answer,omitempty"`
	Sources      []RetrievedItem `json:"sources"`
	StrategyUsed string          `json:"strategy_used,omitempty"`
	Outcome      Outcome         `json:"outcome"`
}

// ValidationError reports malformed input. It is never retried and is
// reported per item, not per batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Is implements errors.Is support for ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// NormalizeKey normalizes a natural key (speaker name, topic name) for
// upsert deduplication: lowercased, trimmed, inner whitespace collapsed.
func NormalizeKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Role identifies the author of a chat message.
type Role string

// Message is a single chat message sent to a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token consumption for a model call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a language model completion.
type Response struct {
	Content      string      `json:"content"`
	Model        string      `json:"model"`
	FinishReason string      `json:"finish_reason"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}

type contextKey string

// Context keys used to thread request identity into telemetry.
const (
	ContextKeyUserID        contextKey = "user_id"
	ContextKeySessionID     contextKey = "session_id"
	ContextKeyRequestSource contextKey = "request_source"
)
