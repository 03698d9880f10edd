package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/cache"
	"github.com/dealhound-cloud/dealhound/internal/config"
	dbRedis "github.com/dealhound-cloud/dealhound/internal/db/redis"
	"github.com/dealhound-cloud/dealhound/internal/interpret"
	logpkg "github.com/dealhound-cloud/dealhound/internal/logger"
	"github.com/dealhound-cloud/dealhound/internal/metrics"
	"github.com/dealhound-cloud/dealhound/internal/normalize"
	dealrepo "github.com/dealhound-cloud/dealhound/internal/repository/deal"
	"github.com/dealhound-cloud/dealhound/internal/score"
	"github.com/dealhound-cloud/dealhound/internal/source"
	chiTransport "github.com/dealhound-cloud/dealhound/internal/transport/chi"
	aiParser "github.com/dealhound-cloud/dealhound/internal/transport/openai"
	healthuc "github.com/dealhound-cloud/dealhound/internal/usecase/health"
	searchuc "github.com/dealhound-cloud/dealhound/internal/usecase/search"
	"github.com/dealhound-cloud/dealhound/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting dealhound API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	// AI parser collaborator — optional; without it every interpretation
	// takes the heuristic path.
	var parser interpret.AIParser
	var aiHealth healthuc.AIChecker
	if cfg.AI.APIKey != "" {
		p := aiParser.NewParser(&aiParser.Config{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
			Timeout: time.Duration(cfg.AI.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		parser = p
		aiHealth = p
		logger.Info("AI parser enabled", zap.String("model", cfg.AI.Model))
	} else {
		logger.Warn("AI parser disabled, heuristic interpretation only")
	}
	interpreter := interpret.New(parser, logger)

	// Source adapters, one owned health state per source.
	registry, err := source.NewRegistry(cfg.Sources, logger)
	if err != nil {
		logger.Fatal("Failed to build source registry", zap.Error(err))
	}
	healthSet := make(source.HealthSet, registry.Len())
	for _, name := range registry.Names() {
		sc := cfg.Sources[name]
		healthSet[name] = source.NewHealth(name, source.HealthConfig{
			RatePerSec:  sc.RatePerSec,
			Burst:       sc.Burst,
			Trips:       sc.BreakerTrips,
			Cooldown:    time.Duration(cfg.Search.BreakerCooldownS) * time.Second,
			MaxCooldown: time.Duration(cfg.Search.BreakerMaxCoolS) * time.Second,
		})
	}
	orchestrator := source.NewOrchestrator(
		registry, healthSet, cfg.Search.MaxWorkers,
		time.Duration(cfg.Search.DeadlineSec)*time.Second, logger,
	)
	logger.Info("Source registry built", zap.Strings("sources", registry.Names()))

	normalizer := normalize.New(logger)
	scorer := score.New(cfg.Search.ResultFloor, cfg.Search.FloorFraction)
	repo := dealrepo.New(store, score.MatchesStrict, logger)
	coordinator := cache.New(store, time.Duration(cfg.Cache.TTLSec)*time.Second, logger)

	searchSvc := searchuc.New(
		interpreter, coordinator, repo, orchestrator, normalizer, scorer,
		cfg.Search.MinPersisted, logger,
	)
	healthSvc := healthuc.New(store, aiHealth)

	server := chiTransport.NewServer(searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
