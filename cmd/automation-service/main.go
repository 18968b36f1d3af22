package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/actions"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/automation"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/config"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/handlers"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/repositories"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/services"
	"github.com/Reg-Kris/pyairtable-automation-service/internal/triggers"
	"github.com/Reg-Kris/pyairtable-automation-service/pkg/database"
	"github.com/Reg-Kris/pyairtable-automation-service/pkg/logger"
	"github.com/Reg-Kris/pyairtable-automation-service/pkg/metrics"
	pkgredis "github.com/Reg-Kris/pyairtable-automation-service/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting Automation Service",
		zap.String("version", "1.0.0"),
		zap.String("environment", os.Getenv("ENVIRONMENT")))

	db, err := database.New(cfg.Database.GetDSN())
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := database.AutoMigrate(db); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	redisClient, err := pkgredis.New(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	metricsRegistry := metrics.NewRegistry()

	// Handler registry is populated once, before any event processing
	registry := automation.NewRegistry(zapLogger)
	triggers.Register(registry)
	actions.Register(registry, redisClient, zapLogger)

	repos := repositories.New(db, redisClient)

	engineConfig := automation.Config{
		ExecuteSequentially: cfg.Automation.ExecuteSequentially,
		IncludeInputData:    cfg.Automation.IncludeInputData,
	}
	engine := automation.NewEngine(registry, repos.Workflow, repos.Execution, engineConfig, metricsRegistry, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := services.NewEventListener(redisClient, engine, cfg.Automation.EventChannels, zapLogger)
	go func() {
		if err := listener.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("Event listener exited", zap.Error(err))
		}
	}()

	// Prometheus metrics on a dedicated listener
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			zapLogger.Error("Metrics server exited", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		ServerHeader: "PyAirtable Automation Service",
		AppName:      "PyAirtable Automation Service v1.0.0",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		metricsRegistry.HTTPRequestsTotal.WithLabelValues(
			c.Method(), c.Route().Path, strconv.Itoa(c.Response().StatusCode())).Inc()
		return err
	})

	h := handlers.New(engine, zapLogger)

	app.Get("/health", h.Ping)
	api := app.Group("/api/v1")
	api.Post("/events", h.IngestEvent)
	api.Get("/workflows/:id/executions", h.ListExecutions)
	api.Get("/executions/:executionId", h.GetExecution)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		zapLogger.Info("HTTP server listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			zapLogger.Fatal("HTTP server exited", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down automation service")
	cancel()
	listener.Stop()
	if err := app.Shutdown(); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
}
