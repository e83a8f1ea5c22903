package graphrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/donbr/graphrag-platform/pkg/driver"
	"github.com/donbr/graphrag-platform/pkg/embedder"
	"github.com/donbr/graphrag-platform/pkg/nlp"
	"github.com/donbr/graphrag-platform/pkg/schema"
)

var (
	// ErrNoDriver is returned when a client is constructed without a graph driver.
	ErrNoDriver = errors.New("graph driver is required")
	// ErrNoEmbedder is returned when a client is constructed without an embedder.
	ErrNoEmbedder = errors.New("embedder is required")
	// ErrEmptyQuestion is returned when Search is called with a blank question.
	ErrEmptyQuestion = errors.New("question must not be empty")
)

// Config holds the tunables of the engine. Zero values fall back to the
// defaults retrieval was calibrated with.
type Config struct {
	// TopK is the default number of results per retrieval.
	TopK int
	// VectorWeight and FulltextWeight blend the hybrid sub-query scores.
	// They are normalized before use, so only their ratio matters.
	VectorWeight   float64
	FulltextWeight float64
	// HopDecay is the per-hop score multiplier for traversal expansion.
	HopDecay float64
	// MaxHops bounds traversal expansion from a vector seed.
	MaxHops int
	// IngestWorkers bounds concurrent segment processing.
	IngestWorkers int
	// EmbedBatchSize is the number of texts per embedding request.
	EmbedBatchSize int
	// SubQueryTimeout bounds each hybrid sub-query; a timed-out sub-query
	// contributes no results instead of failing the call.
	SubQueryTimeout time.Duration
}

// DefaultConfig returns the calibrated default configuration.
func DefaultConfig() *Config {
	return &Config{
		TopK:            5,
		VectorWeight:    0.5,
		FulltextWeight:  0.5,
		HopDecay:        0.7,
		MaxHops:         2,
		IngestWorkers:   4,
		EmbedBatchSize:  32,
		SubQueryTimeout: 10 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.VectorWeight <= 0 && out.FulltextWeight <= 0 {
		out.VectorWeight, out.FulltextWeight = 0.5, 0.5
	}
	if out.HopDecay <= 0 || out.HopDecay > 1 {
		out.HopDecay = 0.7
	}
	if out.MaxHops <= 0 {
		out.MaxHops = 2
	}
	if out.IngestWorkers <= 0 {
		out.IngestWorkers = 4
	}
	if out.EmbedBatchSize <= 0 {
		out.EmbedBatchSize = 32
	}
	if out.SubQueryTimeout <= 0 {
		out.SubQueryTimeout = 10 * time.Second
	}
	return &out
}

// Client wires the graph store, the embedding provider, the language model
// and the schema registry into the ingestion and retrieval operations.
type Client struct {
	driver   driver.GraphDriver
	embedder embedder.Client
	nlp      nlp.Client
	registry *schema.Registry
	config   *Config
	logger   *slog.Logger

	synthesizer Synthesizer
}

// NewClient creates a new engine client. The nlp client may be nil, in which
// case text2cypher routing and answer synthesis are disabled and searches
// return sources without an answer.
func NewClient(graphDriver driver.GraphDriver, embedderClient embedder.Client, nlpClient nlp.Client, registry *schema.Registry, config *Config, logger *slog.Logger) (*Client, error) {
	if graphDriver == nil {
		return nil, ErrNoDriver
	}
	if embedderClient == nil {
		return nil, ErrNoEmbedder
	}
	if registry == nil {
		reg, err := schema.NewRegistry(schema.Config{Dimensions: embedderClient.Dimensions()})
		if err != nil {
			return nil, err
		}
		registry = reg
	}
	if config == nil {
		config = DefaultConfig()
	}
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	if embedderClient.Dimensions() != registry.Dimensions() {
		return nil, &schema.ConfigurationError{
			Message: fmt.Sprintf("embedder produces %d-dimensional vectors but the schema declares %d",
				embedderClient.Dimensions(), registry.Dimensions()),
		}
	}

	c := &Client{
		driver:   graphDriver,
		embedder: embedderClient,
		nlp:      nlpClient,
		registry: registry,
		config:   config,
		logger:   logger,
	}
	if nlpClient != nil {
		c.synthesizer = NewLLMSynthesizer(nlpClient)
	}
	return c, nil
}

// Registry returns the schema registry the client was built with.
func (c *Client) Registry() *schema.Registry {
	return c.registry
}

// Driver returns the underlying graph driver.
func (c *Client) Driver() driver.GraphDriver {
	return c.driver
}

// CreateIndices creates the constraints and indexes declared by the schema
// registry. Safe to call repeatedly.
func (c *Client) CreateIndices(ctx context.Context) error {
	c.logger.Info("creating graph constraints and indexes",
		"content_label", c.registry.ContentLabel(),
		"dimensions", c.registry.Dimensions())
	return c.driver.CreateIndices(ctx)
}

// Stats returns per-dataset graph statistics.
func (c *Client) Stats(ctx context.Context, dataset string) (*driver.GraphStats, error) {
	return c.driver.Stats(ctx, dataset)
}

// ClearDataset removes every node and relationship of a dataset.
func (c *Client) ClearDataset(ctx context.Context, dataset string) error {
	c.logger.Warn("clearing dataset", "dataset", dataset)
	return c.driver.ClearDataset(ctx, dataset)
}

// Close releases the store, embedder and language model resources.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if err := c.driver.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("closing driver: %w", err))
	}
	if err := c.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing embedder: %w", err))
	}
	if c.nlp != nil {
		if err := c.nlp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing nlp client: %w", err))
		}
	}
	return errors.Join(errs...)
}
