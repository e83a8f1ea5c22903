package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Schema configuration
	Schema SchemaConfig `mapstructure:"schema"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// NLP configuration
	NLP NLPConfig `mapstructure:"nlp"`

	// Ingestion configuration
	Ingestion IngestionConfig `mapstructure:"ingestion"`

	// Retrieval configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds graph database configuration
type DatabaseConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// SchemaConfig holds graph schema configuration
type SchemaConfig struct {
	// Namespace prefixes every node label and index name.
	Namespace string `mapstructure:"namespace"`
	// Dimensions is the embedding vector width the graph indexes expect.
	Dimensions int `mapstructure:"dimensions"`
	// RegistryPath optionally loads label definitions from a YAML file.
	RegistryPath string `mapstructure:"registry_path"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	CachePath string `mapstructure:"cache_path"` // empty disables the on-disk cache
}

// NLPConfig holds language model configuration
type NLPConfig struct {
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// IngestionConfig holds ingestion pipeline configuration
type IngestionConfig struct {
	// Workers bounds concurrent segment processing.
	Workers int `mapstructure:"workers"`
	// EmbedBatchSize is the number of texts sent per embedding request.
	EmbedBatchSize int `mapstructure:"embed_batch_size"`
}

// RetrievalConfig holds retrieval strategy tunables
type RetrievalConfig struct {
	TopK           int     `mapstructure:"top_k"`
	VectorWeight   float64 `mapstructure:"vector_weight"`
	FulltextWeight float64 `mapstructure:"fulltext_weight"`
	HopDecay       float64 `mapstructure:"hop_decay"`
	MaxHops        int     `mapstructure:"max_hops"`
	// TimeoutSeconds bounds each retrieval strategy call.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")

	// Schema defaults
	viper.SetDefault("schema.namespace", "GraphRAG")
	viper.SetDefault("schema.dimensions", 1536)

	// Embedding defaults
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.base_url", "")
	viper.SetDefault("embedding.cache_path", "")

	// NLP defaults
	viper.SetDefault("nlp.model", "gpt-4o-mini")
	viper.SetDefault("nlp.temperature", 0.0)
	viper.SetDefault("nlp.max_tokens", 1024)

	// Ingestion defaults
	viper.SetDefault("ingestion.workers", 4)
	viper.SetDefault("ingestion.embed_batch_size", 32)

	// Retrieval defaults
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("retrieval.vector_weight", 0.5)
	viper.SetDefault("retrieval.fulltext_weight", 0.5)
	viper.SetDefault("retrieval.hop_decay", 0.7)
	viper.SetDefault("retrieval.max_hops", 2)
	viper.SetDefault("retrieval.timeout_seconds", 30)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.graphrag/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
		if config.NLP.APIKey == "" {
			config.NLP.APIKey = apiKey
		}
	}

	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		config.Database.Database = db
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		viper.Set("server.port", port)
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
