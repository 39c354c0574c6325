package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"galleryapi/internal/cache"
	"galleryapi/internal/config"
	"galleryapi/internal/http/middleware"
	"galleryapi/internal/service"
)

// Dependencies are the collaborators the HTTP layer is wired with.
type Dependencies struct {
	DB       Pinger
	Media    service.MediaService
	Exporter Exporter
	Tokens   middleware.TokenVerifier
	// Limiter may be nil, which disables export rate limiting.
	Limiter   cache.WindowCounter
	RateLimit config.RateLimitConfig
	Gatherer  prometheus.Gatherer
	// UploadDir is served at /uploads when files live on local disk.
	UploadDir string
	Log       *zap.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Dependencies) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if d.UploadDir != "" {
		app.Static("/uploads", d.UploadDir)
	}

	optional := middleware.OptionalAuth(d.Tokens)
	required := middleware.RequireAuth(d.Tokens)
	limited := middleware.RateLimit(d.Limiter, "export", d.RateLimit.ExportLimit, d.RateLimit.Window, d.Log)

	media := app.Group("/api/media")

	// Fixed paths first so they are not taken for an :id.
	media.Get("/", optional, ListMedia(d.Media))
	media.Get("/popular", PopularMedia(d.Media))
	media.Get("/recent", RecentMedia(d.Media))
	media.Get("/user/:userId", optional, UserMedia(d.Media))
	media.Post("/upload", required, UploadMedia(d.Media))
	media.Post("/upload-multiple", required, UploadMultipleMedia(d.Media))
	media.Post("/download-zip", limited, optional, DownloadZip(d.Exporter, d.Log))

	media.Get("/:id", optional, GetMedia(d.Media))
	media.Put("/:id", required, UpdateMedia(d.Media))
	media.Delete("/:id", required, DeleteMedia(d.Media))
	media.Post("/:id/like", required, ToggleLike(d.Media))
	media.Get("/:id/download", optional, DownloadMedia(d.Media))
}
