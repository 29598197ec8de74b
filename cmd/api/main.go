package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fixpal/backend/internal/api/handlers"
	rediscache "github.com/fixpal/backend/internal/cache/redis"
	"github.com/fixpal/backend/internal/diagnose"
	"github.com/fixpal/backend/internal/ingestion"
	"github.com/fixpal/backend/internal/knowledge"
	"github.com/fixpal/backend/internal/metrics"
	"github.com/fixpal/backend/internal/middleware/ratelimit"
	"github.com/fixpal/backend/internal/middleware/security"
	"github.com/fixpal/backend/internal/middleware/validation"
	"github.com/fixpal/backend/internal/session"
	"github.com/fixpal/backend/internal/storage/sqlite"
	"github.com/fixpal/backend/pkg/config"
	appLogger "github.com/fixpal/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting FixPal diagnosis API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var resultCache diagnose.ResultCache
	var invalidator ingestion.CacheInvalidator
	if cfg.Redis.Enabled {
		redisClient, err := rediscache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		resultCache = redisClient
		invalidator = redisClient
	}

	index := knowledge.NewIndex(sqliteClient, cfg.Index.MaxCandidates)
	if err := index.Reload(context.Background()); err != nil {
		appLogger.Fatal("Failed to load knowledge corpus", zap.Error(err))
	}
	metrics.CorpusSize.Set(float64(index.Size()))
	appLogger.Info("Knowledge corpus loaded", zap.Int("entries", index.Size()))

	ranker := diagnose.NewRanker(diagnose.RankerConfig{
		ConfidenceThreshold: cfg.Matcher.ConfidenceThreshold,
		CategoryBoost:       cfg.Matcher.CategoryBoost,
		CategoryOnlyScore:   cfg.Matcher.CategoryOnlyScore,
	})

	engine := diagnose.NewEngine(index, ranker, resultCache, diagnose.EngineConfig{
		LookupTimeout: time.Duration(cfg.Index.LookupTimeoutSec) * time.Second,
		CacheTTL:      time.Duration(cfg.Cache.TTLSec) * time.Second,
	})

	sessions := session.NewManager(engine, sqliteClient)
	processor := ingestion.NewProcessor(sqliteClient, index, invalidator)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.Log,
	})
	defer limiter.Stop()

	diagnoseHandler := handlers.NewDiagnoseHandler(sessions)
	entriesHandler := handlers.NewEntriesHandler(processor, sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(sessions)

	api := app.Group("/api/v1")
	api.Use(limiter.Middleware())
	api.Use(validation.Middleware(validation.Config{Logger: appLogger.Log}))

	api.Post("/diagnose", diagnoseHandler.HandleDiagnose)
	api.Get("/sessions/:id/history", diagnoseHandler.GetHistory)
	api.Post("/sessions/:id/reset", diagnoseHandler.ResetSession)

	api.Post("/entries", entriesHandler.CreateEntry)
	api.Get("/entries", entriesHandler.ListEntries)

	api.Get("/ws", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ready",
			"entries": index.Size(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
