package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sheetlens/docs"
	"sheetlens/internal/auth"
	"sheetlens/internal/config"
	"sheetlens/internal/database"
	"sheetlens/internal/database/migration"
	handlers "sheetlens/internal/http/handler"
	"sheetlens/internal/http/middleware"
	"sheetlens/internal/logging"
	tracing "sheetlens/internal/otel"
	"sheetlens/internal/repository/postgres"
	"sheetlens/internal/service"
	"sheetlens/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Sheetlens API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logger := logging.New(cfg.Log.Level, cfg.Log.Location())
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize S3-compatible object storage for exports (MinIO-supported)
	objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		logger.Fatal("failed to initialize object storage", zap.Error(err))
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal("failed to initialize token verifier", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg, "/metrics", "/healthz", "/health")
	if err != nil {
		logger.Fatal("failed to register http metrics", zap.Error(err))
	}
	if err := database.RegisterMetrics(reg, db, cfg.Database.Name); err != nil {
		logger.Fatal("failed to register database metrics", zap.Error(err))
	}
	svcMetrics, err := service.NewMetrics(reg)
	if err != nil {
		logger.Fatal("failed to register service metrics", zap.Error(err))
	}

	// Initialize repositories and services
	repo := postgres.NewAnalysisPostgres(db)
	svc := service.NewAnalysisService(objStore, repo, service.Options{
		MaxRows:      cfg.Limits.MaxRows,
		RecentLimit:  cfg.Limits.RecentLimit,
		RecentMaxCap: cfg.Limits.RecentMaxCap,
		CacheTTL:     cfg.CacheTTL,
		PresignTTL:   cfg.MinIO.PresignTTL,
		Metrics:      svcMetrics,
		Logger:       logger,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.Limits.BodyLimitMB * 1024 * 1024,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, svc, verifier)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("server listening", zap.String("addr", addr), zap.String("app_host", cfg.AppHost))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
