package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spsc-cashround/internal/adapters/http/middleware"
	"spsc-cashround/internal/adapters/http/routes"
	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/adapters/persistence/repositories"
	"spsc-cashround/internal/config"
	"spsc-cashround/internal/core/services"
	"spsc-cashround/internal/pkg/logger"
	"spsc-cashround/internal/pkg/roundlock"
	"spsc-cashround/internal/pkg/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	_ "spsc-cashround/docs" // Swagger docs
)

// @title SPSC Cash Round API
// @version 1.0
// @description ระบบวงแชร์สหกรณ์ SPSC Cash Round v1.0 API

// @contact.name API Support
// @contact.email support@spsc.or.th

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.IsProd())

	// Tracing (no-op without OTEL_ENDPOINT)
	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Log.Warnf("⚠️ Tracing disabled: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		logger.Log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate engine tables. Member directory and ledger tables belong to
	// other systems and are only created by the dev seeder.
	if err := models.AutoMigrate(db); err != nil {
		logger.Log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	logger.Log.Info("✅ Database migration completed")

	if cfg.IsDev() {
		if err := config.NewSeeder(db).Run(); err != nil {
			logger.Log.Warnf("⚠️ Warning: Failed to seed development data: %v", err)
		}
	}

	locker, closeLocker := newLocker(cfg)
	defer closeLocker()

	// Overdue cycle watch
	if cfg.Scheduler.CycleWatchEnabled {
		watch := services.NewCycleWatchService(repositories.NewStore(db), cfg.Scheduler.CycleWatchCron, cfg.Scheduler.CycleOverdueDays)
		if err := watch.Start(); err != nil {
			logger.Log.Fatalf("❌ Failed to start cycle watch: %v", err)
		}
		defer watch.Stop()
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SPSC Cash Round API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, db, cfg, locker)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	logger.Log.Infof("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// newLocker returns the Redis round lock when REDIS_ADDR is set, otherwise
// an in-process lock that is only safe for a single instance.
func newLocker(cfg *config.Config) (services.RoundLocker, func()) {
	if cfg.Redis.Addr == "" {
		logger.Log.Warn("⚠️ REDIS_ADDR not set, using in-process round locks")
		return roundlock.NewLocalLocker(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.Fatalf("❌ Failed to connect to redis: %v", err)
	}
	logger.Log.Infof("✅ Redis connected [%s]", cfg.Redis.Addr)

	opts := roundlock.DefaultOptions()
	opts.Expiry = cfg.Redis.LockTTL
	return roundlock.NewRedisLocker(client, opts), func() { _ = client.Close() }
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		logger.Log.Errorf("❌ Error during shutdown: %v", err)
	}
	logger.Log.Info("✅ Server stopped gracefully")
}
