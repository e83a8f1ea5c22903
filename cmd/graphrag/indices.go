package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donbr/graphrag-platform/pkg/config"
)

var initIndicesCmd = &cobra.Command{
	Use:   "init-indices",
	Short: "Create the constraints and indexes declared by the schema registry",
	Long: `Create the uniqueness constraints, the content vector index and the
content full-text index in the graph store. Safe to run repeatedly.`,
	RunE: runInitIndices,
}

func init() {
	rootCmd.AddCommand(initIndicesCmd)
}

func runInitIndices(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	client, err := buildClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	ctx := context.Background()
	defer client.Close(ctx)

	if err := client.CreateIndices(ctx); err != nil {
		return fmt.Errorf("index creation failed: %w", err)
	}
	fmt.Println("constraints and indexes created")
	return nil
}
