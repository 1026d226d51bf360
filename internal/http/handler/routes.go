package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"

	"sheetlens/internal/http/middleware"
	"sheetlens/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Every /api/analysis route requires a verified identity.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.AnalysisService, verifier middleware.TokenVerifier) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api/analysis", middleware.Auth(verifier), middleware.NoStore())

	api.Post("/", SaveAnalysis(svc))
	api.Post("/save", SaveAnalysis(svc))

	api.Get("/recent", RecentAnalyses(svc))
	api.Get("/history", RecentAnalyses(svc))

	api.Get("/download/:id", DownloadAnalysis(svc))
	api.Get("/view/:id", GetAnalysis(svc))

	api.Get("/:id", GetAnalysis(svc))
	api.Get("/:id/download", DownloadAnalysis(svc))
	api.Get("/:id/chart.png", AnalysisChart(svc))
	api.Post("/:id/export", ExportAnalysis(svc))
}

// HealthCheck checks DB connectivity only.
//
// @Summary  Readiness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  errorPayload
// @Router   /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if db == nil || db.PingContext(ctx) != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe answers 200 while the process is up.
//
// @Summary  Liveness probe
// @Tags     health
// @Success  200
// @Router   /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
