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
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"userapi/docs"
	"userapi/internal/config"
	"userapi/internal/database"
	"userapi/internal/database/migration"
	handlers "userapi/internal/http/handler"
	"userapi/internal/http/middleware"
	"userapi/internal/logging"
	"userapi/internal/otel"
	"userapi/internal/repository/postgres"
	"userapi/internal/service"
	"userapi/internal/storage"
)

// @title User API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logging.Configure(logging.Config{
		Level:    cfg.Log.Level,
		Service:  cfg.Log.Service,
		Location: cfg.Log.Location(),
	})
	log := logging.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logging.Base())
	if err != nil {
		log.Fatal().Err(err).Str("event", "tracing_init_failed").Send()
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("event", "db_connect_failed").Send()
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logging.Base(), cfg.Database.Host); err != nil {
		log.Fatal().Err(err).Str("event", "db_migration_failed").Send()
	}

	// Avatar object storage (MinIO or any S3-compatible endpoint)
	objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		log.Fatal().Err(err).Str("event", "storage_init_failed").Send()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := database.RegisterPoolMetrics(reg, db, cfg.Database.Name); err != nil {
		log.Fatal().Err(err).Str("event", "metrics_init_failed").Send()
	}
	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal().Err(err).Str("event", "metrics_init_failed").Send()
	}
	countMetrics, err := service.NewCountMetrics(reg)
	if err != nil {
		log.Fatal().Err(err).Str("event", "metrics_init_failed").Send()
	}

	userRepo := postgres.NewUserPostgres(db)
	userSvc := service.NewUserService(objStore, userRepo,
		service.WithCountMetrics(countMetrics),
		service.WithCountTimeout(cfg.CountTimeout()),
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Order matters: the scope must be attached after otelfiber has replaced
	// the user context, so spans and memoized values share one context.
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logging.Base()))
	app.Use(otelfiber.Middleware())
	app.Use(prom.Handler())
	app.Use(middleware.Scope())

	handlers.RegisterRoutes(app, db, userSvc, reg)

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
		log.Info().Str("event", "server_shutdown").Send()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Str("event", "server_shutdown_failed").Send()
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("event", "server_start").Str("addr", addr).Send()
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Str("event", "server_start_failed").Send()
	}
}
