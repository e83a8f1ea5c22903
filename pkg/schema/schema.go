package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Similarity is the vector index similarity function.
type Similarity string

const (
	// SimilarityCosine is the only similarity function the registry declares.
	SimilarityCosine Similarity = "cosine"
)

// Base label and relationship names. Deployments rename them through the
// namespace prefix, never by editing consumers.
const (
	baseContentLabel = "Content"
	baseSpeakerLabel = "Speaker"
	baseTopicLabel   = "Topic"

	RelHasSpeaker = "HAS_SPEAKER"
	RelMentions   = "MENTIONS"
	RelFollows    = "FOLLOWS"
)

// Constraint declares a uniqueness constraint on a label property.
type Constraint struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	Property string `yaml:"property"`
}

// VectorIndexSpec declares a vector index: which property it covers, the
// embedding dimensionality every write must match, and the similarity
// function retrieval must score with.
type VectorIndexSpec struct {
	IndexName  string     `yaml:"index_name"`
	Label      string     `yaml:"label"`
	Property   string     `yaml:"property"`
	Dimensions int        `yaml:"dimensions"`
	Similarity Similarity `yaml:"similarity"`
}

// FulltextIndexSpec declares a full-text index over one or more properties.
type FulltextIndexSpec struct {
	IndexName  string   `yaml:"index_name"`
	Label      string   `yaml:"label"`
	Properties []string `yaml:"properties"`
}

// ConfigurationError reports a schema/registry mismatch. It is fatal at
// startup and never deferred to request time.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("schema configuration error: %s", e.Message)
}

// Is implements errors.Is support for ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// Config holds the tunable parts of the registry. The zero value plus a
// dimensionality is a valid un-namespaced schema.
type Config struct {
	// Namespace prefixes all labels and index names (e.g. "GraphRAG" yields
	// the label GraphRAG_Content) so the graph can share a store with
	// unrelated data. Empty means no prefix.
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	// Dimensions is the embedding dimensionality declared for the Content
	// vector index. Must match the embedding provider.
	Dimensions int `yaml:"dimensions" mapstructure:"dimensions"`
}

// Registry is the single source of truth for node labels, relationship
// types, constraints, and index declarations. It is read-only after
// construction and safe for unsynchronized concurrent reads.
type Registry struct {
	namespace  string
	dimensions int

	vectorIndexes   map[string]VectorIndexSpec
	fulltextIndexes map[string]FulltextIndexSpec
	constraints     []Constraint
}

// NewRegistry builds a registry from config. It fails fast on a missing or
// nonsensical dimensionality so construction and retrieval can never drift
// apart on embedding shape.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Dimensions <= 0 {
		return nil, &ConfigurationError{Message: fmt.Sprintf("embedding dimensions must be positive, got %d", cfg.Dimensions)}
	}

	r := &Registry{
		namespace:  cfg.Namespace,
		dimensions: cfg.Dimensions,
	}

	content := r.ContentLabel()
	speaker := r.SpeakerLabel()
	topic := r.TopicLabel()

	r.constraints = []Constraint{
		{Name: r.indexName("content_id_unique"), Label: content, Property: "id"},
		{Name: r.indexName("speaker_id_unique"), Label: speaker, Property: "id"},
		{Name: r.indexName("topic_id_unique"), Label: topic, Property: "id"},
	}

	r.vectorIndexes = map[string]VectorIndexSpec{
		content: {
			IndexName:  r.indexName("content_embedding"),
			Label:      content,
			Property:   "embedding",
			Dimensions: cfg.Dimensions,
			Similarity: SimilarityCosine,
		},
	}

	r.fulltextIndexes = map[string]FulltextIndexSpec{
		content: {
			IndexName:  r.indexName("content_fulltext"),
			Label:      content,
			Properties: []string{"title", "text"},
		},
	}

	return r, nil
}

// LoadRegistry reads a registry config from a YAML document on disk.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("invalid schema YAML: %v", err)}
	}

	return NewRegistry(cfg)
}

// ContentLabel returns the (possibly namespaced) Content node label.
func (r *Registry) ContentLabel() string { return r.label(baseContentLabel) }

// SpeakerLabel returns the (possibly namespaced) Speaker node label.
func (r *Registry) SpeakerLabel() string { return r.label(baseSpeakerLabel) }

// TopicLabel returns the (possibly namespaced) Topic node label.
func (r *Registry) TopicLabel() string { return r.label(baseTopicLabel) }

// Dimensions returns the declared embedding dimensionality.
func (r *Registry) Dimensions() int { return r.dimensions }

// RequiredConstraints lists the uniqueness constraints the store must hold
// before ingestion starts.
func (r *Registry) RequiredConstraints() []Constraint {
	out := make([]Constraint, len(r.constraints))
	copy(out, r.constraints)
	return out
}

// VectorIndexSpec returns the vector index declared for a label. A label
// without a declared vector index is a configuration error, not a miss.
func (r *Registry) VectorIndexSpec(label string) (VectorIndexSpec, error) {
	spec, ok := r.vectorIndexes[label]
	if !ok {
		return VectorIndexSpec{}, &ConfigurationError{Message: fmt.Sprintf("no vector index declared for label %q", label)}
	}
	return spec, nil
}

// FulltextIndexSpec returns the full-text index declared for a label.
func (r *Registry) FulltextIndexSpec(label string) (FulltextIndexSpec, error) {
	spec, ok := r.fulltextIndexes[label]
	if !ok {
		return FulltextIndexSpec{}, &ConfigurationError{Message: fmt.Sprintf("no full-text index declared for label %q", label)}
	}
	return spec, nil
}

// Vocabulary renders the registry's labels and relationships as a compact
// schema description, used to ground NL-to-Cypher translation.
func (r *Registry) Vocabulary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Node labels:\n")
	fmt.Fprintf(&b, "  (%s {id, title, text, type, dataset, start_time, end_time, source_order})\n", r.ContentLabel())
	fmt.Fprintf(&b, "  (%s {id, name, dataset})\n", r.SpeakerLabel())
	fmt.Fprintf(&b, "  (%s {id, name, category, dataset})\n", r.TopicLabel())
	fmt.Fprintf(&b, "Relationships:\n")
	fmt.Fprintf(&b, "  (%s)-[:%s]->(%s)\n", r.ContentLabel(), RelHasSpeaker, r.SpeakerLabel())
	fmt.Fprintf(&b, "  (%s)-[:%s]->(%s)\n", r.ContentLabel(), RelMentions, r.TopicLabel())
	fmt.Fprintf(&b, "  (%s)-[:%s]->(%s)\n", r.ContentLabel(), RelFollows, r.ContentLabel())
	return b.String()
}

func (r *Registry) label(base string) string {
	if r.namespace == "" {
		return base
	}
	return r.namespace + "_" + base
}

func (r *Registry) indexName(base string) string {
	if r.namespace == "" {
		return base
	}
	return strings.ToLower(r.namespace) + "_" + base
}
