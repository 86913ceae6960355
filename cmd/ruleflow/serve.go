package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	redisStore "github.com/aretw0/ruleflow/internal/adapters/redis"
	"github.com/aretw0/ruleflow/internal/presentation/tui"
	httpAdapter "github.com/aretw0/ruleflow/pkg/adapters/http"
	"github.com/aretw0/ruleflow/pkg/adapters/memory"
	"github.com/aretw0/ruleflow/pkg/catalog"
	"github.com/aretw0/ruleflow/pkg/observability"
	"github.com/aretw0/ruleflow/pkg/persistence/middleware"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/aretw0/ruleflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves every rule in --dir over HTTP: POST /rules/{id} executes a rule with the
request body as context data. Runs are recorded in memory, or in Redis with --redis.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		if _, err := httpAdapter.Spec(); err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("addr")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		watch, _ := cmd.Flags().GetBool("watch")
		debug, _ := cmd.Flags().GetBool("debug")

		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics, err := observability.NewMetrics(promReg)
		if err != nil {
			return err
		}

		cat, err := newCatalog(cmd, logger, catalog.WithPrepare(func(p *pipeline.Pipeline) {
			metrics.Instrument(p)
		}))
		if err != nil {
			return err
		}

		store, closeStore, err := openStore(cmd, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		opts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger.With("component", "http")),
			httpAdapter.WithStore(store),
		}
		if debug {
			opts = append(opts, httpAdapter.WithDebug(logger))
		}
		servers := []*http.Server{{Addr: addr, Handler: httpAdapter.NewHandler(cat, opts...)}}
		if metricsAddr != "" {
			servers = append(servers, &http.Server{
				Addr:    metricsAddr,
				Handler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}),
			})
		}

		if isTerminal(cmd.OutOrStdout()) {
			tui.PrintBanner(cmd.OutOrStdout(), version())
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		for _, srv := range servers {
			g.Go(func() error {
				logger.Info("Listening", "addr", srv.Addr, "dir", cat.Dir())
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				return shutdown(srv, logger)
			})
		}
		if watch {
			g.Go(func() error {
				reloads, err := cat.Watch(ctx)
				if err != nil {
					return err
				}
				for range reloads {
					logger.Info("Rules reloaded", "rules", cat.IDs())
				}
				return nil
			})
		}
		return g.Wait()
	},
}

// shutdown gives outstanding requests a deadline for completion, then
// closes the remaining connections.
func shutdown(srv *http.Server, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Graceful shutdown did not complete", "addr", srv.Addr, "timeout", shutdownTimeout, "err", err)
		return srv.Close()
	}
	logger.Info("Server stopped gracefully", "addr", srv.Addr)
	return nil
}

// openStore builds the run store selected by the flags: Redis when --redis
// is set, memory otherwise, wrapped by PII masking and then encryption.
func openStore(cmd *cobra.Command, logger *slog.Logger) (ports.RunStore, func(), error) {
	redisAddr, _ := cmd.Flags().GetString("redis")
	redisDB, _ := cmd.Flags().GetInt("redis-db")
	redisPassword, _ := cmd.Flags().GetString("redis-password")
	ttl, _ := cmd.Flags().GetDuration("run-ttl")
	keyHex, _ := cmd.Flags().GetString("encryption-key")
	fallbackHex, _ := cmd.Flags().GetStringSlice("encryption-fallback-key")
	mask, _ := cmd.Flags().GetStringSlice("mask")

	var store ports.RunStore = memory.NewStore()
	closer := func() {}
	if redisAddr != "" {
		rs := redisStore.New(redisAddr, redisPassword, redisDB, redisStore.WithTTL(ttl))
		if err := rs.Ping(cmd.Context()); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", redisAddr, err)
		}
		logger.Info("Recording runs in Redis", "addr", redisAddr, "db", redisDB, "ttl", ttl)
		store = rs
		closer = func() {
			if err := rs.Close(); err != nil {
				logger.Warn("Closing Redis failed", "err", err)
			}
		}
	}

	var mws []middleware.Middleware
	if len(mask) > 0 {
		pii, err := middleware.NewPIIMiddleware(mask)
		if err != nil {
			closer()
			return nil, nil, err
		}
		mws = append(mws, pii)
	}
	if keyHex != "" {
		config, err := encryptionConfig(keyHex, fallbackHex)
		if err != nil {
			closer()
			return nil, nil, err
		}
		enc, err := middleware.NewEncryptionMiddleware(config)
		if err != nil {
			closer()
			return nil, nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), closer, nil
}

func encryptionConfig(activeHex string, fallbackHex []string) (middleware.EncryptionConfig, error) {
	var config middleware.EncryptionConfig
	key, err := hex.DecodeString(activeHex)
	if err != nil {
		return config, fmt.Errorf("--encryption-key must be hex encoded: %w", err)
	}
	config.ActiveKey = key
	for _, h := range fallbackHex {
		key, err := hex.DecodeString(h)
		if err != nil {
			return config, fmt.Errorf("--encryption-fallback-key must be hex encoded: %w", err)
		}
		config.FallbackKeys = append(config.FallbackKeys, key)
	}
	return config, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Address of the API server")
	serveCmd.Flags().String("metrics-addr", "", "Address of the Prometheus /metrics server (disabled when empty)")
	serveCmd.Flags().Bool("watch", false, "Reload the rules when files in --dir change")
	serveCmd.Flags().Bool("debug", false, "Log every pipeline and step event (shown with --log-level debug)")
	serveCmd.Flags().String("redis", "", "Redis address for run records (memory when empty)")
	serveCmd.Flags().Int("redis-db", 0, "Redis database")
	serveCmd.Flags().String("redis-password", "", "Redis password")
	serveCmd.Flags().Duration("run-ttl", 24*time.Hour, "Expiry of run records in Redis (0 keeps them)")
	serveCmd.Flags().String("encryption-key", "", "Hex encoded AES-256 key encrypting stored run contexts")
	serveCmd.Flags().StringSlice("encryption-fallback-key", nil, "Previous hex encoded keys, for reading runs after a key rotation")
	serveCmd.Flags().StringSlice("mask", nil, "Regexp of context keys whose values are masked in stored runs")
}
