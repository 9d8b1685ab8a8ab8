// Command wormhole runs a relay behind the HTTP API: a chat gateway posts
// platform events to it and receives the relayed copies over its REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/api"
	"github.com/xraph/wormhole/observability"
	"github.com/xraph/wormhole/store"
	"github.com/xraph/wormhole/store/memory"
	pgstore "github.com/xraph/wormhole/store/postgres"
	redisstore "github.com/xraph/wormhole/store/redis"
	sqlitestore "github.com/xraph/wormhole/store/sqlite"
	"github.com/xraph/wormhole/transport/httpapi"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML configuration file")
	pflag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wormhole:", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wormhole:", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("wormhole stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store ready", "driver", cfg.Store.Driver)

	transport, err := httpapi.New(httpapi.Config{
		BaseURL: cfg.Transport.BaseURL,
		Token:   cfg.Transport.Token,
		Secret:  cfg.Transport.Secret,
		Timeout: cfg.Transport.Timeout,
	})
	if err != nil {
		return err
	}

	tracer, shutdownTracing, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rc := cfg.Relay
	relay, err := wormhole.New(
		wormhole.WithStore(st),
		wormhole.WithTransport(transport),
		wormhole.WithLogger(logger),
		wormhole.WithMetrics(observability.NewMetrics(reg)),
		wormhole.WithTracer(tracer),
		wormhole.WithCommandPrefix(rc.CommandPrefix),
		wormhole.WithOwnerID(rc.OwnerID),
		wormhole.WithLaneBuffer(rc.LaneBuffer),
		wormhole.WithDestinationRateLimit(rc.DestinationRateLimit),
		wormhole.WithMaxLength(rc.MaxLength),
		wormhole.WithMentionFormat(rc.MentionFormat, rc.EmphasisFormat),
		wormhole.WithAnnouncePrefix(rc.AnnouncePrefix),
		wormhole.WithResolverCacheTTL(rc.ResolverCacheTTL),
	)
	if err != nil {
		return err
	}
	relay.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("/", api.NewHandler(relay, api.Config{
		Secret:    cfg.Ingress.Secret,
		Tolerance: cfg.Ingress.Tolerance,
		Announce:  cfg.Ingress.Announce,
	}, logger))

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting wormhole", "listen", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			_ = relay.Close(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := relay.Close(shutdownCtx); err != nil {
		logger.Warn("relay shutdown", "error", err)
	}

	logger.Info("wormhole stopped")
	return nil
}

func newLogger(cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
}

func openStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "redis":
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		s := redisstore.New(goredis.NewClient(opts))
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return s, nil
	case "sqlite":
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, cfg.URL); err != nil {
			return nil, err
		}
		db, err := grove.Open(drv)
		if err != nil {
			_ = drv.Close()
			return nil, err
		}
		return migrated(ctx, sqlitestore.New(db))
	case "postgres":
		drv := pgdriver.New()
		if err := drv.Open(ctx, cfg.URL); err != nil {
			return nil, err
		}
		db, err := grove.Open(drv)
		if err != nil {
			_ = drv.Close()
			return nil, err
		}
		return migrated(ctx, pgstore.New(db))
	default:
		return memory.New(), nil
	}
}

// migrated applies pending migrations, closing s when they fail.
func migrated(ctx context.Context, s store.Store) (store.Store, error) {
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
