package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"galleryapi/docs"
	"galleryapi/internal/auth"
	"galleryapi/internal/cache"
	"galleryapi/internal/config"
	"galleryapi/internal/database"
	"galleryapi/internal/database/migration"
	"galleryapi/internal/export"
	handlers "galleryapi/internal/http/handler"
	"galleryapi/internal/http/middleware"
	"galleryapi/internal/logger"
	appotel "galleryapi/internal/otel"
	"galleryapi/internal/repository"
	mongorepo "galleryapi/internal/repository/mongo"
	"galleryapi/internal/repository/postgres"
	"galleryapi/internal/service"
	"galleryapi/internal/storage"
)

const counterTimeout = 5 * time.Second

// @title Media Gallery API
// @version 1.0
// @description Image gallery with uploads, browsing and bulk ZIP export.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := appotel.Init(ctx, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	// Metadata store: MongoDB by default, PostgreSQL when DB_DRIVER=postgres
	var (
		repo     repository.MediaRepository
		pinger   handlers.Pinger
		mongoCli *mongo.Client
		sqlDB    *sql.DB
	)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		sqlDB, err = database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := migration.EnsureMigrated(ctx, sqlDB, log); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
		repo = postgres.NewMediaPostgres(sqlDB)
		pinger = sqlDB
	case config.DriverMongo:
		var coll *mongo.Collection
		mongoCli, coll, err = database.NewMongo(ctx, cfg.Mongo, log)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		mr := mongorepo.NewMediaMongo(coll)
		if err := mr.EnsureIndexes(ctx); err != nil {
			log.Fatal("failed to create indexes", zap.Error(err))
		}
		repo = mr
		pinger = database.MongoPinger{Client: mongoCli}
	default:
		log.Fatal("unsupported DB_DRIVER", zap.String("driver", cfg.DBDriver))
	}

	// File store: local disk served at /uploads, or an S3-compatible bucket
	var (
		store     storage.Storage
		uploadDir string
	)
	switch cfg.Storage.Driver {
	case config.StorageMinIO:
		store, err = storage.NewMinIO(ctx, cfg.Storage.MinIO)
		if err != nil {
			log.Fatal("failed to initialize object storage", zap.Error(err))
		}
	case config.StorageLocal:
		store, err = storage.NewLocalStorage(cfg.Storage.LocalDir, "/uploads")
		if err != nil {
			log.Fatal("failed to initialize local storage", zap.Error(err))
		}
		uploadDir = cfg.Storage.LocalDir
	default:
		log.Fatal("unsupported STORAGE_DRIVER", zap.String("driver", cfg.Storage.Driver))
	}

	tokens, err := auth.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		log.Fatal("failed to initialize token manager", zap.Error(err))
	}

	// Rate limiting is shared through Redis; without it the export route is unlimited
	var (
		redisCli *redis.Client
		limiter  cache.WindowCounter
	)
	if cfg.Redis.Addr != "" {
		redisCli, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		limiter = cache.NewRedisWindowCounter(redisCli, "ratelimit")
	} else {
		log.Warn("REDIS_ADDR not set, export rate limiting disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal("failed to register http metrics", zap.Error(err))
	}
	exportMetrics, err := export.NewMetrics(reg)
	if err != nil {
		log.Fatal("failed to register export metrics", zap.Error(err))
	}

	// Initialize services
	counter := export.NewUsageCounter(repo, log, counterTimeout)
	exporter := export.NewCoordinator(repo, store, counter, log, export.Options{
		MaxItems: cfg.Media.ExportMaxItems,
		Metrics:  exportMetrics,
	})
	mediaSvc := service.NewMediaService(store, repo, log, cfg.Media.UploadMaxBytes)

	// Client IPs key the export rate limit, so behind a proxy they come from
	// PROXY_HEADER, trusted only from TRUSTED_PROXIES when that is set
	app := fiber.New(fiber.Config{
		ErrorHandler:            handlers.ErrorHandler(),
		BodyLimit:               int(cfg.Media.UploadMaxBytes)*service.MaxUploadFiles + 1<<20,
		ProxyHeader:             cfg.HTTP.ProxyHeader,
		EnableTrustedProxyCheck: len(cfg.HTTP.TrustedProxies) > 0,
		TrustedProxies:          cfg.HTTP.TrustedProxies,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(prom.Handler())

	handlers.RegisterRoutes(app, handlers.Dependencies{
		DB:        pinger,
		Media:     mediaSvc,
		Exporter:  exporter,
		Tokens:    tokens,
		Limiter:   limiter,
		RateLimit: cfg.RateLimit,
		Gatherer:  reg,
		UploadDir: uploadDir,
		Log:       log,
	})

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

	addr := ":" + cfg.Port
	exitCode := 0
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		serveErr <- app.Listen(addr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("server stopped", zap.Error(err))
			exitCode = 1
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
		if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
			log.Error("server shutdown", zap.Error(err))
		}
	}

	// Pending download counts are flushed before the stores go away
	counter.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := shutdownTracing(closeCtx); err != nil {
		log.Warn("tracer shutdown", zap.Error(err))
	}
	if mongoCli != nil {
		if err := mongoCli.Disconnect(closeCtx); err != nil {
			log.Warn("mongo disconnect", zap.Error(err))
		}
	}
	if sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Warn("database close", zap.Error(err))
		}
	}
	if redisCli != nil {
		if err := redisCli.Close(); err != nil {
			log.Warn("redis close", zap.Error(err))
		}
	}

	log.Info("shutdown complete")
	if exitCode != 0 {
		_ = log.Sync()
		os.Exit(exitCode)
	}
}
