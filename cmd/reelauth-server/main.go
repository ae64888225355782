// Command reelauth-server runs the authentication and feed API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/reelauth"
	"github.com/MrEthical07/reelauth/internal/config"
	"github.com/MrEthical07/reelauth/internal/httpapi"
	"github.com/MrEthical07/reelauth/internal/mailer"
	"github.com/MrEthical07/reelauth/internal/stores/memory"
	mongostore "github.com/MrEthical07/reelauth/internal/stores/mongo"
	promexport "github.com/MrEthical07/reelauth/metrics/export/prometheus"
	"github.com/MrEthical07/reelauth/middleware"
	"github.com/MrEthical07/reelauth/recommend"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	logger.Info("starting reelauth",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
		slog.String("store", cfg.Store.Driver),
	)

	rdb, closeRedis, err := openRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	users, catalog, pingStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var sender mailer.Sender = mailer.LogSender{Logger: logger}
	if cfg.Mail.Host != "" {
		smtp, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			Timeout:  cfg.Mail.Timeout,
		})
		if err != nil {
			return fmt.Errorf("mailer: %w", err)
		}
		sender = smtp
	} else {
		logger.Warn("no smtp relay configured; mail will be logged")
	}
	dispatcher := mailer.NewDispatcher(mailer.Config{BufferSize: cfg.Mail.BufferSize}, sender, logger)

	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}
	engine, err := reelauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithNotifier(dispatcher).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	// Close drains the mail dispatcher.
	defer engine.Close()

	feed, err := recommend.NewService(catalog, cfg.Feed.PoolSize)
	if err != nil {
		return err
	}

	httpMetrics := middleware.NewHTTPMetrics()
	metricsHandler, err := promexport.Handler(engine, httpMetrics)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	proxies, err := cfg.Server.Proxies()
	if err != nil {
		return err
	}

	r, err := httpapi.NewRouter(httpapi.Options{
		Auth:           engine,
		Feed:           feed,
		Logger:         logger,
		ClientURL:      cfg.URLs.Client,
		Production:     cfg.Server.Production(),
		RefreshTTL:     engineCfg.JWT.RefreshTTL,
		Metrics:        httpMetrics,
		Timeout:        requestTimeout,
		TrustedProxies: proxies,
	})
	if err != nil {
		return err
	}
	r.Handle("/metrics", metricsHandler)
	r.Get("/health", healthHandler())
	r.Get("/ready", readyHandler(rdb, pingStore))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	sent, failed, dropped := dispatcher.Stats()
	logger.Info("server stopped gracefully",
		slog.Uint64("mail_sent", sent),
		slog.Uint64("mail_failed", failed),
		slog.Uint64("mail_dropped", dropped),
	)
	return nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("embedded redis: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		logger.Warn("using embedded redis; limiter and grant state is not shared or persisted",
			slog.String("addr", mr.Addr()))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	logger.Info("connected to redis", slog.String("addr", cfg.Addr))
	return client, func() { _ = client.Close() }, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (
	reelauth.UserStore, recommend.Catalog, func(context.Context) error, func(), error,
) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("using in-memory user store; accounts are lost on restart")
		noop := func(context.Context) error { return nil }
		return memory.NewUsers(), recommend.NewMemoryCatalog(nil), noop, func() {}, nil
	}

	client, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	closeFn := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}

	db := client.Database(cfg.Mongo.Database)
	users := mongostore.NewUsers(db)
	movies := mongostore.NewMovies(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, nil, nil, fmt.Errorf("users indexes: %w", err)
	}
	if err := movies.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, nil, nil, fmt.Errorf("movies indexes: %w", err)
	}
	logger.Info("connected to mongodb", slog.String("database", cfg.Mongo.Database))

	ping := func(ctx context.Context) error { return client.Ping(ctx, nil) }
	return users, movies, ping, closeFn, nil
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func readyHandler(rdb redis.UniversalClient, pingStore func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := pingStore(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"error","component":"store"}`))
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"error","component":"redis"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
