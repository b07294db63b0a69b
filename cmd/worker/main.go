package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/benvon/practice-queue/internal/cache"
	"github.com/benvon/practice-queue/internal/config"
	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/logger"
	"github.com/benvon/practice-queue/internal/queue"
	"github.com/benvon/practice-queue/internal/scheduler"
	"github.com/benvon/practice-queue/internal/services/practice"
	"github.com/benvon/practice-queue/internal/workers"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	noCron := flag.Bool("no-cron", false, "Only consume jobs; do not schedule nightly refreshes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.JobsEnabled() {
		log.Fatalf("RABBITMQ_URL is required for the worker")
	}
	if !*noCron {
		if err := workers.ValidateSchedule(cfg.SnapshotCron); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("snapshot_cron", cfg.SnapshotCron),
		zap.String("scheduler_timezone", cfg.SchedulerTimezone),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	jobQueue, err := queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, zapLogger, 10)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	attemptRepo := database.NewAttemptRepository(db)
	sched := scheduler.New(
		scheduler.WithLocation(cfg.Location),
		scheduler.WithLogger(logger.Named(zapLogger, "scheduler")),
	)
	// No job queue here: a refresh must never schedule another refresh
	practiceService := practice.NewService(
		database.NewProblemRepository(db),
		attemptRepo,
		sched,
		practice.WithSnapshotStore(cache.NewSnapshotCache(redisClient, cfg.QueueCacheTTL)),
		practice.WithLogger(logger.Named(zapLogger, "practice")),
	)

	refresher := workers.NewSnapshotRefresher(practiceService, jobQueue, logger.Named(zapLogger, "refresher"))

	if !*noCron {
		nightly := workers.NewNightlyRefresher(attemptRepo, jobQueue, cfg.Location, logger.Named(zapLogger, "nightly"))
		go func() {
			if err := nightly.Start(ctx, cfg.SnapshotCron); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("nightly_refresher_stopped_with_error", zap.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming_messages", zap.Error(err))
	}

	zapLogger.Info("worker_started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("message_channel_closed")
					return
				}
				if err := refresher.ProcessJob(ctx, msg); err != nil {
					job := msg.GetJob()
					fields := []zap.Field{zap.Error(err)}
					if job != nil {
						fields = append(fields,
							zap.String("job_id", job.ID.String()),
							zap.String("job_type", string(job.Type)),
						)
					}
					zapLogger.Error("failed_to_process_job", fields...)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()

	<-sigChan
	zapLogger.Info("worker_shutting_down")
	cancel()
	zapLogger.Info("worker_stopped")
}
