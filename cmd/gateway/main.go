package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lumora-edu/mentor-gateway/internal/auth"
	"github.com/lumora-edu/mentor-gateway/internal/config"
	"github.com/lumora-edu/mentor-gateway/internal/gateway"
	"github.com/lumora-edu/mentor-gateway/internal/mission"
	"github.com/lumora-edu/mentor-gateway/internal/policy"
	"github.com/lumora-edu/mentor-gateway/internal/ratelimit"
	"github.com/lumora-edu/mentor-gateway/internal/sanitize"
	"github.com/lumora-edu/mentor-gateway/internal/telemetry"
	"github.com/lumora-edu/mentor-gateway/internal/upstream"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	loader := config.NewLoader(*configDir, slog.Default())
	if err := loader.Load(); err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(loader.Config().Telemetry.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	// Mission catalog: database-backed when configured, built-in otherwise.
	registry := mission.DefaultRegistry()
	if cfg.Database.Host != "" {
		dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		loaded, err := mission.LoadCatalog(context.Background(), dbPool)
		if err != nil {
			logger.Warn("mission catalog load failed, using built-in catalog", "error", err)
		} else {
			registry = loaded
			logger.Info("mission catalog loaded from database")
		}
	}

	// Redis backs the session cache. Optional: without it every request hits
	// the identity provider.
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (session cache disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	keyPEM, err := os.ReadFile(cfg.Upstream.PrivateKeyPath)
	if err != nil {
		logger.Error("failed to read service account key", "path", cfg.Upstream.PrivateKeyPath, "error", err)
		os.Exit(1)
	}
	signingKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		logger.Error("failed to parse service account key", "error", err)
		os.Exit(1)
	}

	creds := upstream.NewCredentials(cfg.Upstream.TokenURL, cfg.Upstream.ServiceAccount, cfg.Upstream.Scope, signingKey, nil)
	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIVersion, creds, cfg.Upstream.RequestTimeout, cfg.Upstream.FirstByteTimeout)

	evaluator := policy.NewEvaluator(func() config.PolicyConfig {
		return loader.Config().Policy
	})
	if cfg.Policy.Enabled {
		if err := evaluator.Load(); err != nil {
			logger.Error("failed to load policies", "error", err)
			os.Exit(1)
		}
		logger.Info("policies loaded", "path", cfg.Policy.BundlePath)
	}

	metrics := telemetry.NewMetrics()
	creds.WithRefreshObserver(func(outcome string) {
		metrics.TokenRefreshTotal.WithLabelValues(outcome).Inc()
	})
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	gate := auth.NewGate(cfg.Identity.IntrospectionURL, cfg.Identity.ClientSecret, cfg.Identity.Timeout, rdb)
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Window:     cfg.RateLimit.Window,
		MaxActions: cfg.RateLimit.MaxActions,
		Cooldown:   cfg.RateLimit.Cooldown,
	})

	handler := gateway.NewHandler(registry, sanitize.New(), client, evaluator, metrics, loader.Config)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/mentor/v1/health", healthHandler)
	r.Options("/v1/chat", handler.Preflight)
	r.Options("/v1/chat/stream", handler.Preflight)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(gate))
		r.Use(ratelimit.Middleware(limiter))
		r.Post("/v1/chat", handler.Chat)
		r.Post("/v1/chat/stream", handler.ChatStream)
	})

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
		if err != nil && err != http.ErrServerClosed {
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

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

// requestIDMiddleware assigns every request an id echoed in the response
// headers and carried through the log lines.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}

func logLevel(name string) slog.Level {
	switch name {
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
