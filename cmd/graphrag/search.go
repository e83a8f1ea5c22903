package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	graphrag "github.com/donbr/graphrag-platform"
	"github.com/donbr/graphrag-platform/pkg/config"
)

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Ask a natural-language question against the knowledge graph",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("strategy", "", "force a strategy (vector, traversal, hybrid, text2cypher)")
	searchCmd.Flags().Int("top-k", 0, "number of sources to retrieve")
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	strategy, _ := cmd.Flags().GetString("strategy")
	topK, _ := cmd.Flags().GetInt("top-k")
	dataset, _ := cmd.Flags().GetString("dataset")

	question := strings.Join(args, " ")
	result, err := client.Search(ctx, question, &graphrag.SearchOptions{
		Strategy: strategy,
		TopK:     topK,
		Filters:  &graphrag.Filters{Dataset: dataset},
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("outcome: %s (strategy: %s)\n", result.Outcome, result.StrategyUsed)
	if result.Answer != "" {
		fmt.Printf("\n%s\n", result.Answer)
	}
	if len(result.Sources) > 0 {
		fmt.Println("\nsources:")
		for i, s := range result.Sources {
			fmt.Printf("  [%d] %.3f %s %s\n", i+1, s.Score, s.Content.ID, s.Content.Title)
		}
	}
	return nil
}
