package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			agg, driver, err := newAggregator(logger)
			if err != nil {
				fmt.Printf("Neo4j: FAIL (%v)\n", err)
				return fmt.Errorf("one or more health checks failed")
			}
			defer closeDriver(context.Background(), driver, logger)

			// Probe each source with a throwaway query.
			probe := models.SearchRequest{Query: "health check"}
			if err := probe.Normalize(); err != nil {
				return fmt.Errorf("health: %w", err)
			}
			for _, id := range agg.Sources() {
				client, _ := agg.Client(id)
				if _, err := client.FetchCandidates(ctx, probe.Query, probe.SearchType, 1); err != nil {
					fmt.Printf("%s: FAIL (%v)\n", id, err)
					allOK = false
				} else {
					fmt.Printf("%s: OK\n", id)
				}
			}

			if !cfg.Neo4j.Enabled() {
				fmt.Println("offshore_leaks: SKIP (neo4j.uri not configured)")
			}

			// Check Claude API key
			if cfg.Claude.APIKey == "" {
				fmt.Println("Claude API: SKIP (no API key configured; enrichment disabled)")
			} else {
				fmt.Println("Claude API: OK")
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
