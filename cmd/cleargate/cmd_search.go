package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

func searchCmd() *cobra.Command {
	var (
		searchType string
		sources    []string
		limit      int
		threshold  int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search [name]",
		Short: "Screen a name against all configured sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			agg, driver, err := newAggregator(logger)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer closeDriver(context.Background(), driver, logger)

			req := models.SearchRequest{
				Query:          args[0],
				SearchType:     models.SearchMode(searchType),
				Limit:          limit,
				FuzzyThreshold: threshold,
			}
			for _, s := range sources {
				req.Sources = append(req.Sources, models.SourceID(s))
			}

			env, err := agg.Search(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(env)
			}

			printEnvelope(env)
			return nil
		},
	}

	cmd.Flags().StringVar(&searchType, "type", "", "matching mode (exact|fuzzy, default fuzzy)")
	cmd.Flags().StringSliceVar(&sources, "sources", nil, "sources to search (default all)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max results per source (default 10)")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "minimum fuzzy match score 0-100 (default 80)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response envelope as JSON")
	return cmd
}

func printEnvelope(env *models.SearchEnvelope) {
	fmt.Printf("Query: %q (%s, threshold %d)\n", env.Query, env.SearchType, env.FuzzyThreshold)
	fmt.Printf("Results: %d total, %d sanctioned\n", env.TotalResults, env.TotalSanctioned)
	if len(env.SourcesFailed) > 0 {
		fmt.Printf("Failed sources: %s\n", joinSources(env.SourcesFailed))
	}
	fmt.Println()

	for i := range env.AllResults {
		r := &env.AllResults[i]
		flag := " "
		if r.IsSanctioned {
			flag = "!"
		}
		fmt.Printf("[%d]%s (%3d) %s [%s, %s]\n", i+1, flag, r.MatchScore, r.Name, r.Source, r.Kind)
		for _, p := range r.SanctionPrograms {
			fmt.Printf("      program: %s", p.Program)
			if p.Authority != "" {
				fmt.Printf(" (%s)", p.Authority)
			}
			fmt.Println()
		}
	}

	if env.TotalResults == 0 {
		if env.AllFailed() {
			fmt.Println("All sources failed; no answer available.")
		} else {
			fmt.Println("No matches found.")
		}
	}
}

func joinSources(ids []models.SourceID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
