package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cgi"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/af-corp/bodygate/internal/apps"
	"github.com/af-corp/bodygate/internal/config"
	"github.com/af-corp/bodygate/internal/gateway"
	"github.com/af-corp/bodygate/internal/httputil"
	"github.com/af-corp/bodygate/internal/ratelimit"
	"github.com/af-corp/bodygate/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	cgiMode := flag.Bool("cgi", false, "serve a single request over CGI instead of listening")
	flag.Parse()

	// CGI owns stdout for the response.
	var logOut io.Writer = os.Stdout
	if *cgiMode {
		logOut = os.Stderr
	}
	level := new(slog.LevelVar)
	logger := bootstrapLogger(logOut, level)
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	level.Set(parseLevel(cfg.Telemetry.LogLevel))
	if cfg.Telemetry.LogFormat == "text" {
		logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		loader.SetLogger(logger)
	}

	if !*cgiMode {
		loader.OnReload(func() {
			level.Set(parseLevel(loader.Config().Telemetry.LogLevel))
		})
		if err := loader.Watch(context.Background()); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		}
	}

	// PostgreSQL backs the export application only.
	var db apps.Querier
	var checks []readinessCheck
	if cfg.Database.Enabled() {
		pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(context.Background()); err != nil {
			logger.Warn("database not reachable (export will fail until it is)", "error", err)
		} else {
			logger.Info("database connected")
		}
		db = pool
		checks = append(checks, readinessCheck{"database", pool.Ping})
	}

	var rdb redis.UniversalClient
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addresses,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (rate limiting disabled)", "error", err)
			client.Close()
		} else {
			logger.Info("redis connected")
			rdb = client
			defer client.Close()
			checks = append(checks, readinessCheck{"redis", func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}})
		}
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	current := loader.Config
	app := func(name string, a gateway.Application) http.Handler {
		return gateway.NewHandler(name, a, current, metrics, logger)
	}

	limiter := ratelimit.NewLimiter(rdb, "bodygate:ratelimit")
	rpm := func() int {
		rl := loader.Config().RateLimit
		if !rl.Enabled {
			return 0
		}
		return rl.RequestsPerMinute
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, w.Header().Get("X-Request-ID"), "No application mounted at "+r.URL.Path)
	})
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(checks))

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, rpm, metrics))
		r.Handle("/hello", app("hello", apps.Hello(current)))
		r.Get("/files/*", app("files", apps.Files(current)).ServeHTTP)
		r.Handle("/echo", app("echo", apps.Echo()))
		r.Get("/export", app("export", apps.NewExport(db, current, logger)).ServeHTTP)
	})

	if *cgiMode {
		if err := cgi.Serve(r); err != nil {
			logger.Error("cgi request failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Telemetry.MetricsPort > 0 {
		go serveMetrics(cfg.Telemetry.MetricsPort, logger)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

func bootstrapLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func serveMetrics(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics listener starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics listener failed", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

type readinessCheck struct {
	name string
	ping func(context.Context) error
}

func readyHandler(checks []readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, c := range checks {
			if err := c.ping(ctx); err != nil {
				slog.Warn("readiness check failed", "check", c.name, "error", err)
				httputil.WriteServiceUnavailableError(w, w.Header().Get("X-Request-ID"), c.name+" unavailable")
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}
