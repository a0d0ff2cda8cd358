package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/config"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/handler"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/queue"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/repository"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/service"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/validator"
	"github.com/fairyhunter13/scalable-coupon-issuance/pkg/cache"
	"github.com/fairyhunter13/scalable-coupon-issuance/pkg/database"
	applog "github.com/fairyhunter13/scalable-coupon-issuance/pkg/logger"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	applog.Init(cfg.Log.Level, cfg.Log.Pretty, "coupon-api")

	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	rdb, err := cache.NewClient(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, cfg.Redis.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	producer, err := queue.NewProducerClient(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	if cfg.Kafka.EnsureTopics {
		if err := queue.EnsureTopics(ctx, producer, cfg.Kafka); err != nil {
			log.Warn().Err(err).Msg("failed to ensure topics")
		}
	}

	// Initialize components (layered architecture)
	couponRepo := repository.NewCouponRepository(pool)
	userCouponRepo := repository.NewUserCouponRepository(pool)
	store := repository.NewReservationStore(rdb)
	catalog := repository.NewCouponCatalog(rdb)
	publisher := queue.NewPublisher(producer)

	couponService := service.NewCouponService(couponRepo, userCouponRepo, store, catalog)
	issuanceService := service.NewIssuanceService(catalog, store, publisher, service.IssuanceOptions{
		ReservationTTL:  cfg.Issuance.ReservationTTL,
		IssuedRetention: cfg.Issuance.IssuedRetention,
	})

	// Warm the admission catalog before taking traffic
	if n, err := couponService.SyncCatalog(ctx); err != nil {
		log.Error().Err(err).Int("synced", n).Msg("catalog sync incomplete")
	} else {
		log.Info().Int("synced", n).Msg("catalog synced")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Scalable Coupon Issuance",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	validate := validator.New()
	couponHandler := handler.NewCouponHandler(couponService, validate)
	issueHandler := handler.NewIssueHandler(issuanceService, validate)
	healthHandler := handler.NewHealthHandler(pool, store)

	app.Get("/health", healthHandler.Check)

	app.Post("/api/coupons", couponHandler.CreateCoupon)
	app.Get("/api/coupons/:couponId", couponHandler.GetCoupon)
	app.Post("/api/coupons/:couponId/issue", issueHandler.IssueCoupon)
	app.Get("/api/users/:userId/coupons", couponHandler.ListUserCoupons)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// In-flight requests may still publish, so the producer outlives the server
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if err := producer.Flush(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush kafka producer")
	}
	producer.Close()

	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close redis client")
	}
	pool.Close()
	log.Info().Msg("server stopped")
}
