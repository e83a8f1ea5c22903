package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donbr/graphrag-platform/pkg/config"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed content nodes left pending by earlier provider failures",
	Long: `Backfill finds content nodes in the --dataset partition whose embedding
is still pending, requests vectors for them in batches and attaches the
results, making the nodes visible to vector search. Safe to run repeatedly.`,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().Int("limit", 0, "maximum number of pending nodes to backfill (0 = one batch)")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
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

	dataset, _ := cmd.Flags().GetString("dataset")
	limit, _ := cmd.Flags().GetInt("limit")

	n, err := client.BackfillEmbeddings(ctx, dataset, limit)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	fmt.Printf("dataset %s: %d embeddings backfilled\n", dataset, n)
	return nil
}
