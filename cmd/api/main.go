package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/config"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/database"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/database/migration"
	handlers "github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/http/handler"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/http/middleware"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/ledger"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/otel"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/repository/postgres"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/service"
	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/storage"
)

func main() {
	ctx := context.Background()
	loc := time.UTC

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	// Tracing is optional; the process still serves without an OTLP endpoint
	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Metrics registry shared by middleware, services and the /metrics endpoint
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMiddleware, err := middleware.NewPrometheusMiddleware(promRegistry)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}
	verifyMetrics, err := service.NewVerificationMetrics(promRegistry)
	if err != nil {
		log.Fatalf("failed to register verification metrics: %v", err)
	}

	// Repositories, confirmation scheduler and services
	repo := postgres.NewRegistryPostgres(db)

	scheduler := ledger.NewScheduler(repo, time.Duration(cfg.Registry.ConfirmationDelaySec)*time.Second)
	defer scheduler.Stop()
	// Re-arm entries that were still pending when the process last stopped
	if err := scheduler.Recover(ctx); err != nil {
		log.Fatalf("failed to recover pending confirmations: %v", err)
	}

	svcs := handlers.Services{
		Registration: service.NewRegistrationService(repo, objStore, scheduler, cfg.Registry.MaxFileSize),
		Verification: service.NewVerificationService(repo, verifyMetrics),
		Queries:      service.NewQueryService(repo),
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(loc))
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, db, svcs, promRegistry)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
