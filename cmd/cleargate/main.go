package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"

	"github.com/bouksibkhalid-create/cleargate/internal/aggregate"
	"github.com/bouksibkhalid-create/cleargate/internal/config"
	"github.com/bouksibkhalid-create/cleargate/internal/graph"
	"github.com/bouksibkhalid-create/cleargate/internal/source"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "cleargate",
		Short: "Cleargate — multi-source entity screening service",
		Long:  "Cleargate screens people and organizations against sanctions lists and offshore-leaks data, aggregating fuzzy-matched results from OpenSanctions, sanctions.io and the ICIJ graph into one response.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		searchCmd(),
		connectionsCmd(),
		healthCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newDriver() (neo4j.DriverWithContext, error) {
	return neo4j.NewDriverWithContext(
		cfg.Neo4j.URI,
		neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Password, ""),
	)
}

// newAggregator builds the source clients and the aggregator over them.
// The returned driver is non-nil only when the offshore-leaks graph is
// configured; the caller owns closing it.
func newAggregator(logger *slog.Logger) (*aggregate.Aggregator, neo4j.DriverWithContext, error) {
	sourceTimeout := time.Duration(cfg.Search.SourceTimeoutSeconds) * time.Second

	clients := []source.Client{
		source.NewOpenSanctionsClient(cfg.OpenSanctions.BaseURL, cfg.OpenSanctions.APIKey, sourceTimeout, logger),
		source.NewSanctionsIOClient(cfg.SanctionsIO.BaseURL, cfg.SanctionsIO.APIKey, sourceTimeout, logger),
	}

	var driver neo4j.DriverWithContext
	if cfg.Neo4j.Enabled() {
		var err error
		driver, err = newDriver()
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to neo4j: %w", err)
		}
		clients = append(clients, source.NewOffshoreLeaksClient(driver, sourceTimeout, logger))
	} else {
		logger.Warn("neo4j.uri not configured; offshore_leaks source and graph traversal are disabled")
	}

	agg := aggregate.New(clients, aggregate.Options{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RetryAfter:       time.Duration(cfg.Breaker.RetryAfterSeconds) * time.Second,
	}, logger)
	return agg, driver, nil
}

// newGraphService returns nil when the graph is not configured.
func newGraphService(driver neo4j.DriverWithContext, logger *slog.Logger) *graph.Service {
	if driver == nil {
		return nil
	}
	return graph.NewService(driver, time.Duration(cfg.Graph.TimeoutSeconds)*time.Second, logger)
}

func closeDriver(ctx context.Context, driver neo4j.DriverWithContext, logger *slog.Logger) {
	if driver == nil {
		return
	}
	if err := driver.Close(ctx); err != nil {
		logger.Warn("closing neo4j driver", "error", err)
	}
}
