package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/benvon/practice-queue/internal/cache"
	"github.com/benvon/practice-queue/internal/config"
	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/handlers"
	"github.com/benvon/practice-queue/internal/logger"
	"github.com/benvon/practice-queue/internal/middleware"
	"github.com/benvon/practice-queue/internal/queue"
	"github.com/benvon/practice-queue/internal/scheduler"
	"github.com/benvon/practice-queue/internal/services/oidc"
	"github.com/benvon/practice-queue/internal/services/practice"
	"github.com/benvon/practice-queue/internal/telemetry"
	"github.com/gorilla/mux"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const (
	serviceName    = "practice-queue-api"
	reloadInterval = time.Minute
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("scheduler_timezone", cfg.SchedulerTimezone),
		zap.Bool("jobs_enabled", cfg.JobsEnabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingEnabled := false
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.Options{
			ServiceName:  serviceName,
			Endpoint:     cfg.OTELEndpoint,
			Insecure:     cfg.OTELInsecure,
			SamplerRatio: cfg.OTELSamplerRatio,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracingEnabled = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
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

	snapshots := cache.NewSnapshotCache(redisClient, cfg.QueueCacheTTL)

	// The job queue is optional; without it attempt changes only invalidate the cache
	var jobQueue *queue.RabbitMQQueue
	if cfg.JobsEnabled() {
		jobQueue, err = queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, zapLogger, 10)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_rabbitmq")
	}

	problemRepo := database.NewProblemRepository(db)
	attemptRepo := database.NewAttemptRepository(db)
	userRepo := database.NewUserRepository(db)
	oidcConfigRepo := database.NewOIDCConfigRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	sched := scheduler.New(
		scheduler.WithLocation(cfg.Location),
		scheduler.WithLogger(logger.Named(zapLogger, "scheduler")),
	)
	serviceOpts := []practice.Option{
		practice.WithSnapshotStore(snapshots),
		practice.WithLogger(logger.Named(zapLogger, "practice")),
	}
	if jobQueue != nil {
		serviceOpts = append(serviceOpts, practice.WithJobQueue(jobQueue))
	}
	practiceService := practice.NewService(problemRepo, attemptRepo, sched, serviceOpts...)

	oidcProvider := oidc.NewProvider(oidcConfigRepo)
	authenticator := oidc.NewAuthenticator(oidcProvider, cfg.OIDCProvider, oidc.NewJWKSManager(oidc.DefaultJWKSTTL))

	limiterStore, err := redisstore.NewStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, reloadInterval)
	corsReloader.Load(ctx)
	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, middleware.DefaultRatelimitRate, zapLogger, reloadInterval)
	rateLimitReloader.Load(ctx)
	go corsReloader.Start(ctx)
	go rateLimitReloader.Start(ctx)

	healthChecker := handlers.NewHealthChecker().
		AddCheck("database", db.PingContext).
		AddCheck("cache", snapshots.Ping)
	if jobQueue != nil {
		healthChecker.AddCheck("queue", jobQueue.HealthCheck)

		dlqGC := queue.NewGarbageCollector(jobQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)
		go func() {
			if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", cfg.DLQGCInterval),
			zap.Duration("retention", cfg.DLQRetention),
		)
	}

	openAPIHandler, err := handlers.NewOpenAPIHandler()
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_document", zap.Error(err))
	}

	authHandler := handlers.NewAuthHandler(oidcProvider, cfg.OIDCProvider, zapLogger)
	taskQueueHandler := handlers.NewTaskQueueHandler(practiceService, zapLogger)
	problemsHandler := handlers.NewProblemsHandler(problemRepo, zapLogger)
	attemptsHandler := handlers.NewAttemptsHandler(attemptRepo, problemRepo, practiceService, zapLogger)

	r := mux.NewRouter()
	r.NotFoundHandler = middleware.NotFound(zapLogger)
	r.MethodNotAllowedHandler = middleware.MethodNotAllowed(zapLogger)

	// Middleware registered first is the outermost wrapper
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	r.Use(middleware.RequireJSON(zapLogger))
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}

	healthChecker.RegisterRoutes(r)
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	loginRouter := apiRouter.PathPrefix("/auth").Subrouter()
	loginRouter.Use(rateLimitReloader.Middleware())
	authHandler.RegisterPublicRoutes(loginRouter)

	protected := apiRouter.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(userRepo, authenticator, zapLogger))
	protected.Use(rateLimitReloader.Middleware())
	authHandler.RegisterRoutes(protected.PathPrefix("/auth").Subrouter())
	taskQueueHandler.RegisterRoutes(protected.PathPrefix("/task-queue").Subrouter())
	problemsHandler.RegisterRoutes(protected.PathPrefix("/problems").Subrouter())
	attemptsHandler.RegisterRoutes(protected.PathPrefix("/attempts").Subrouter())

	// Preflight requests for unknown routes still get CORS headers
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
