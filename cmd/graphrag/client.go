package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	graphrag "github.com/donbr/graphrag-platform"
	"github.com/donbr/graphrag-platform/pkg/config"
	"github.com/donbr/graphrag-platform/pkg/driver"
	"github.com/donbr/graphrag-platform/pkg/embedder"
	gl "github.com/donbr/graphrag-platform/pkg/logger"
	"github.com/donbr/graphrag-platform/pkg/nlp"
	"github.com/donbr/graphrag-platform/pkg/schema"
	"github.com/donbr/graphrag-platform/pkg/telemetry"
)

// buildLogger assembles the color handler, optionally layered with the
// parquet telemetry handler for error persistence.
func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	var handler slog.Handler = gl.NewColorHandler(os.Stderr, &slog.HandlerOptions{
		Level: gl.ParseLevel(cfg.Log.Level),
	})

	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		handler = parquetHandler
	}

	return slog.New(handler), nil
}

// buildClient wires the full engine from configuration: schema registry,
// Neo4j driver, embedding client (optionally cached on disk), and the
// retry/circuit-breaker wrapped language model client.
func buildClient(cfg *config.Config, logger *slog.Logger) (*graphrag.Client, error) {
	var registry *schema.Registry
	var err error
	if cfg.Schema.RegistryPath != "" {
		registry, err = schema.LoadRegistry(cfg.Schema.RegistryPath)
	} else {
		registry, err = schema.NewRegistry(schema.Config{
			Namespace:  cfg.Schema.Namespace,
			Dimensions: cfg.Schema.Dimensions,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build schema registry: %w", err)
	}

	graphDriver, err := driver.NewNeo4jDriver(
		cfg.Database.URI,
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Database,
		registry,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to graph store: %w", err)
	}

	var embedderClient embedder.Client = embedder.NewOpenAIEmbedder(cfg.Embedding.APIKey, embedder.Config{
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Schema.Dimensions,
	})
	if cfg.Embedding.CachePath != "" {
		embedderClient, err = embedder.NewCachedClient(embedderClient, cfg.Embedding.Model, cfg.Embedding.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open embedding cache: %w", err)
		}
	}

	var nlpClient nlp.Client
	if cfg.NLP.APIKey != "" {
		temperature := cfg.NLP.Temperature
		maxTokens := cfg.NLP.MaxTokens
		nlpClient = nlp.NewOpenAIClient(cfg.NLP.APIKey, nlp.Config{
			Model:       cfg.NLP.Model,
			BaseURL:     cfg.NLP.BaseURL,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
		nlpClient = nlp.NewRetryClient(nlpClient, nlp.DefaultRetryConfig())
		if cfg.CircuitBreaker.Enabled {
			nlpClient = nlp.NewCircuitBreakerClient(nlpClient, nlp.CircuitBreakerConfig{
				MaxRequests:      cfg.CircuitBreaker.MaxRequests,
				Interval:         cfg.CircuitBreaker.Interval,
				Timeout:          cfg.CircuitBreaker.Timeout,
				ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
			}, logger, "graphrag-llm")
		}
	} else {
		logger.Warn("no LLM API key configured, text2cypher and answer synthesis disabled")
	}

	engineConfig := &graphrag.Config{
		TopK:            cfg.Retrieval.TopK,
		VectorWeight:    cfg.Retrieval.VectorWeight,
		FulltextWeight:  cfg.Retrieval.FulltextWeight,
		HopDecay:        cfg.Retrieval.HopDecay,
		MaxHops:         cfg.Retrieval.MaxHops,
		IngestWorkers:   cfg.Ingestion.Workers,
		EmbedBatchSize:  cfg.Ingestion.EmbedBatchSize,
		SubQueryTimeout: time.Duration(cfg.Retrieval.TimeoutSeconds) * time.Second,
	}

	return graphrag.NewClient(graphDriver, embedderClient, nlpClient, registry, engineConfig, logger)
}
