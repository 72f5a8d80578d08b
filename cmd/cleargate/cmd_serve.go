package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bouksibkhalid-create/cleargate/internal/api"
	"github.com/bouksibkhalid-create/cleargate/internal/cache"
	"github.com/bouksibkhalid-create/cleargate/internal/enrich"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			agg, driver, err := newAggregator(logger)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeDriver(context.Background(), driver, logger)

			graphs := newGraphService(driver, logger)

			var enricher *enrich.Enricher
			if cfg.Claude.APIKey != "" {
				enricher = enrich.New(cfg.Claude.APIKey, cfg.Claude.Model, logger)
			} else {
				logger.Warn("ANTHROPIC_API_KEY not configured; /v1/enrich is disabled")
			}

			store, err := newCacheStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			if store != nil {
				defer func() { _ = store.Close() }()
			}

			var limiter *api.RateLimiter
			if cfg.RateLimit.Requests > 0 {
				limiter = api.NewRateLimiter(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
			}

			srv := api.NewServer(agg, graphs, enricher,
				store, time.Duration(cfg.Cache.TTLSeconds)*time.Second,
				limiter, logger, cfg.API.AuthToken)

			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set CLEARGATE_API_AUTH_TOKEN or cfg.api.auth_token for production use")
			}

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
					errCh <- fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				close(errCh)
			}()

			select {
			case <-cmd.Context().Done():
				logger.Info("shutting down")
			case startErr := <-errCh:
				if startErr != nil {
					return startErr
				}
				return nil
			}

			const shutdownTimeout = 10 * time.Second
			if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
				return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
			}

			// Drain the errCh in case ListenAndServe returned after Shutdown.
			if startErr := <-errCh; startErr != nil {
				return startErr
			}

			return nil
		},
	}
	return cmd
}

// newCacheStore returns nil when caching is disabled.
func newCacheStore(ctx context.Context) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		store, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connecting cache: %w", err)
		}
		return store, nil
	case "none":
		return nil, nil
	default:
		return cache.NewMemory(), nil
	}
}
