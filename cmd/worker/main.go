package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-issuance/internal/config"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/queue"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/repository"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/service"
	"github.com/fairyhunter13/scalable-coupon-issuance/internal/worker"
	"github.com/fairyhunter13/scalable-coupon-issuance/pkg/cache"
	"github.com/fairyhunter13/scalable-coupon-issuance/pkg/database"
	applog "github.com/fairyhunter13/scalable-coupon-issuance/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	applog.Init(cfg.Log.Level, cfg.Log.Pretty, "coupon-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	dlt := queue.DeadLetterTopic(queue.TopicIssueRequested)
	confirmClient, err := queue.NewConsumerClient(cfg.Kafka, cfg.Kafka.ClientID+"-confirm", cfg.Kafka.GroupID, queue.TopicIssueRequested)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create confirmation consumer")
	}
	compensateClient, err := queue.NewConsumerClient(cfg.Kafka, cfg.Kafka.ClientID+"-compensate", cfg.Kafka.DLTGroupID, dlt)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create compensation consumer")
	}
	if cfg.Kafka.EnsureTopics {
		if err := queue.EnsureTopics(ctx, confirmClient, cfg.Kafka); err != nil {
			log.Warn().Err(err).Msg("failed to ensure topics")
		}
	}

	couponRepo := repository.NewCouponRepository(pool)
	userCouponRepo := repository.NewUserCouponRepository(pool)
	store := repository.NewReservationStore(rdb)
	catalog := repository.NewCouponCatalog(rdb)

	couponService := service.NewCouponService(couponRepo, userCouponRepo, store, catalog)
	confirmationService := service.NewConfirmationService(pool, couponRepo, userCouponRepo, store, cfg.Issuance.IssuedRetention)
	compensationService := service.NewCompensationService(store, catalog, userCouponRepo, cfg.Issuance.IssuedRetention)

	confirmConsumer := queue.NewConsumer("confirmation", confirmClient,
		worker.NewConfirmationWorker(confirmationService).Handle,
		queue.ConsumerOptions{
			MaxAttempts:     cfg.Issuance.ConfirmMaxAttempts,
			BackoffBase:     cfg.Issuance.ConfirmBackoffBase,
			BackoffMax:      cfg.Issuance.ConfirmBackoffMax,
			DeadLetterTopic: dlt,
		})
	// Compensation retries until it succeeds; every step is idempotent
	compensateConsumer := queue.NewConsumer("compensation", compensateClient,
		worker.NewCompensationWorker(compensationService).Handle,
		queue.ConsumerOptions{
			BackoffBase: cfg.Issuance.ConfirmBackoffBase,
			BackoffMax:  cfg.Issuance.ConfirmBackoffMax,
		})

	scheduler := worker.NewScheduler(compensationService, couponService, worker.ScheduleConfig{
		Sweep:       cfg.Issuance.SweepSchedule,
		CatalogSync: cfg.Issuance.CatalogSyncSchedule,
	})
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	var wg sync.WaitGroup
	for _, c := range []*queue.Consumer{confirmConsumer, compensateConsumer} {
		wg.Add(1)
		go func(c *queue.Consumer) {
			defer wg.Done()
			c.Run(ctx)
		}(c)
	}

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	// Consumers return once their current batch is committed
	wg.Wait()
	confirmClient.Close()
	compensateClient.Close()

	select {
	case <-scheduler.Stop().Done():
	case <-time.After(time.Duration(cfg.Server.ShutdownTimeout) * time.Second):
		log.Warn().Msg("scheduled jobs did not finish before shutdown timeout")
	}

	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close redis client")
	}
	pool.Close()
	log.Info().Msg("worker stopped")
}
