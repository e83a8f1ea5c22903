package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/donbr/graphrag-platform/pkg/config"
	"github.com/donbr/graphrag-platform/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <segments.json>",
	Short: "Ingest a transcript segment file into the knowledge graph",
	Long: `Ingest reads a JSON array of transcript segments and writes them into
the graph as Content, Speaker and Topic nodes with embeddings, partitioned
by the --dataset flag.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read segment file: %w", err)
	}
	var segments []types.Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return fmt.Errorf("failed to parse segment file: %w", err)
	}

	client, err := buildClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	ctx := context.Background()
	defer client.Close(ctx)

	dataset, _ := cmd.Flags().GetString("dataset")
	report, err := client.Ingest(ctx, dataset, segments)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("dataset %s: %d succeeded, %d skipped, %d failed (%s)\n",
		report.Dataset, report.Succeeded, report.Skipped, len(report.Failed), report.Elapsed)
	for _, f := range report.Failed {
		fmt.Printf("  %s: %s\n", f.SegmentID, f.Reason)
	}
	return nil
}
