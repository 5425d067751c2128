package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wardrate-engine/config"
	"wardrate-engine/internal/delivery/http/middleware"
	v1 "wardrate-engine/internal/delivery/http/v1"
	"wardrate-engine/internal/infrastructure/cache"
	"wardrate-engine/internal/repository/pgxrepo"
	"wardrate-engine/internal/usecase"
	"wardrate-engine/pkg/logger"
	"wardrate-engine/pkg/storage"

	"github.com/NYTimes/gziphandler"
)

const (
	serviceName    = "wardrate-engine"
	serviceVersion = "1.0.0"
)

func main() {
	cfg := config.LoadConfig()

	// Initialize Logger
	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	// Initialize Database
	pgxPool, err := pgxrepo.NewPgxPool(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Successfully connected to PostgreSQL via pgx")

	// Initialize Repositories
	rateRepo := pgxrepo.NewRateRepository(pgxPool)
	locationRepo := pgxrepo.NewLocationRepository(pgxPool)
	popularWards := pgxrepo.NewPopularWardSource(pgxPool)

	// Initialize Cache (In-Memory)
	// Default expiration follows the match TTL, cleanup every 30m
	memCache := cache.NewMemoryCache(cfg.MatchCacheTTL, 30*time.Minute)

	// Set up Router
	mux := http.NewServeMux()

	// --- Modules Initialization ---

	// Resolution Engine
	resolveUC := usecase.NewResolveUsecase(rateRepo, memCache, cfg)
	rateHandler := v1.NewRateHandler(resolveUC, locationRepo)

	// Invalidation + Admin Module
	invalidator := usecase.NewInvalidator(memCache)
	adminUC := usecase.NewRateAdminUsecase(rateRepo, invalidator)

	// Transfer Module (export/import), with optional R2 snapshot upload
	var snapshots usecase.SnapshotStore
	if cfg.R2BucketName != "" {
		r2Storage, err := storage.NewR2Storage(
			context.Background(),
			cfg.R2AccountID,
			cfg.R2AccessKeyID,
			cfg.R2AccessKeySecret,
			cfg.R2BucketName,
			cfg.R2PublicURL,
			cfg.R2UploadTimeout,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize R2 Storage")
		}
		snapshots = r2Storage
	} else {
		log.Warn().Msg("R2 snapshot storage not configured, export upload disabled")
	}
	transferUC := usecase.NewTransferUsecase(rateRepo, invalidator, snapshots)

	// Preheater (triggered by the external scheduler or the admin endpoint)
	preheater := usecase.NewPreheater(resolveUC, popularWards, cfg)

	adminRateHandler := v1.NewAdminRateHandler(adminUC, transferUC, preheater)

	// Public
	mux.HandleFunc("POST /api/v1/rates/resolve", rateHandler.ResolveRate)
	mux.HandleFunc("GET /api/v1/locations/{code}", rateHandler.GetLocation)

	// Admin (authentication is applied by the gateway in front of this service)
	mux.HandleFunc("GET /api/v1/admin/rates", adminRateHandler.ListRates)
	mux.HandleFunc("GET /api/v1/admin/rates/{id}", adminRateHandler.GetRate)
	mux.HandleFunc("POST /api/v1/admin/rates", adminRateHandler.CreateRate)
	mux.HandleFunc("PATCH /api/v1/admin/rates/{id}", adminRateHandler.UpdateRate)
	mux.HandleFunc("DELETE /api/v1/admin/rates/{id}", adminRateHandler.DeleteRate)
	mux.HandleFunc("POST /api/v1/admin/rates/reorder", adminRateHandler.ReorderRates)
	mux.HandleFunc("POST /api/v1/admin/rates/bulk", adminRateHandler.BulkAction)
	mux.HandleFunc("GET /api/v1/admin/rates/export", adminRateHandler.ExportRates)
	mux.HandleFunc("POST /api/v1/admin/rates/import", adminRateHandler.ImportRates)
	mux.HandleFunc("POST /api/v1/admin/cache/preheat", adminRateHandler.Preheat)

	// Health Check
	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok", "db": "connected"}`))
	}
	mux.HandleFunc("GET /api/v1/health", healthHandler)
	mux.HandleFunc("GET /health", healthHandler) // Support root health check for Load Balancers

	addr := fmt.Sprintf(":%s", cfg.Port)

	// Apply CORS (with config injection), Request Logger and Gzip
	handler := middleware.NewCORSMiddleware(cfg)(mux)
	handler = middleware.RequestLogger(handler)
	handler = gziphandler.GzipHandler(handler)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Graceful Shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.ServiceStart(serviceName, serviceVersion, cfg.Port)

	// Wait for interrupt signal via channel
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	pgxPool.Close()
	logger.ServiceStop(serviceName)
}
