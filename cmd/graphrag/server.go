package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/donbr/graphrag-platform/pkg/config"
	"github.com/donbr/graphrag-platform/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the GraphRAG HTTP server",
	Long: `Start the GraphRAG HTTP server to provide REST API access to the
knowledge graph: segment ingestion, hybrid search and health checks.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	serverCmd.Flags().String("db-uri", "", "Neo4j bolt URI")
	serverCmd.Flags().String("db-username", "", "Database username")
	serverCmd.Flags().String("db-password", "", "Database password")
	serverCmd.Flags().String("db-database", "", "Database name")

	serverCmd.Flags().String("nlp-model", "", "LLM model")
	serverCmd.Flags().String("nlp-api-key", "", "LLM API key")
	serverCmd.Flags().String("embedding-model", "", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")

	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for parquet error telemetry")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Database.URI == "" {
		return fmt.Errorf("database URI is required")
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	client, err := buildClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	srv := server.New(cfg, client, logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		if err := client.Close(shutdownCtx); err != nil {
			return fmt.Errorf("engine shutdown error: %w", err)
		}
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}

	if cmd.Flags().Changed("nlp-model") {
		cfg.NLP.Model, _ = cmd.Flags().GetString("nlp-model")
	}
	if cmd.Flags().Changed("nlp-api-key") {
		cfg.NLP.APIKey, _ = cmd.Flags().GetString("nlp-api-key")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}

	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}
