package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamgate/internal/core/ports"
	"streamgate/internal/core/services"
	httphandlers "streamgate/internal/handlers/http"
	"streamgate/internal/infrastructure/distributed"
	"streamgate/internal/infrastructure/livekit"
	"streamgate/internal/infrastructure/middleware"
	"streamgate/internal/infrastructure/monitoring"
	"streamgate/internal/infrastructure/reliability"
	repositories "streamgate/internal/infrastructure/repositories"
	"streamgate/pkg/circuitbreaker"
	"streamgate/pkg/config"
	"streamgate/pkg/logger"
	"streamgate/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, cfgPath, err := config.LoadFirst(config.SearchPaths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "streamgate: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	log.Infow("configuration loaded", "path", cfgPath, "storage", cfg.Storage.Backend)

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "streamgate",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repoFactory, err := repositories.NewRepositoryFactory(rootCtx, cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	streamRepo := repoFactory.CreateStreamRepository()
	redisClient := repoFactory.RedisClient()

	// Metrics
	var (
		metrics   ports.Metrics
		collector *monitoring.PrometheusCollector
		gatherer  prometheus.Gatherer
	)
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
		metrics = collector
		gatherer = prometheus.DefaultGatherer
		log.Info("Prometheus metrics enabled")
	} else {
		metrics = services.NewMetricsService()
	}

	// LiveKit behind retry and circuit breaker
	lkClient := livekit.NewClient(livekit.Config{
		URL:            cfg.LiveKit.URL,
		APIKey:         cfg.LiveKit.APIKey,
		APISecret:      cfg.LiveKit.APISecret,
		RequestTimeout: cfg.LiveKit.RequestTimeout,
	}, log)

	var onBreakerChange func(name string, from, to circuitbreaker.State)
	if collector != nil {
		onBreakerChange = func(name string, _, to circuitbreaker.State) {
			collector.SetCircuitBreakerState(name, to)
		}
	}
	provider := reliability.NewProviderWrapper(
		lkClient,
		reliability.RetryConfigFrom(cfg),
		reliability.CircuitBreakerConfigFrom(cfg),
		log,
		onBreakerChange,
	)

	var locker ports.IdentityLocker
	if redisClient != nil {
		locker = distributed.NewRedisIdentityLocker(redisClient, cfg.Redis.KeyPrefix, cfg.Provisioning.LockTTL, cfg.Provisioning.LockTimeout)
	} else {
		locker = distributed.NewMemoryIdentityLocker(cfg.Provisioning.LockTTL, cfg.Provisioning.LockTimeout)
	}

	streamKeys := services.NewCachedStreamKeysService(streamRepo, cfg.Cache.StreamKeysTTL)
	defer streamKeys.Stop()

	// Cross-instance cache invalidation
	var events ports.EventPublisher
	if cfg.Events.Enabled && redisClient != nil {
		instanceID := uuid.NewString()
		bus := distributed.NewEventBus(redisClient, cfg.Events.Channel, instanceID, log)
		events = bus

		ready := make(chan struct{})
		go func() {
			if err := bus.Subscribe(rootCtx, ready, distributed.InvalidationHandler(streamKeys, log)); err != nil {
				log.Errorw("event bus subscription ended", "error", err)
			}
		}()
		select {
		case <-ready:
			log.Infow("event bus subscribed", "channel", cfg.Events.Channel, "instance_id", instanceID)
		case <-time.After(5 * time.Second):
			log.Warn("event bus subscription not confirmed, continuing")
		}
	}

	// Services
	reconciler := services.NewReconcilerService(provider, provider, metrics, log, cfg.Provisioning.MaxParallelDeletes)
	provisioner := services.NewProvisionerService(streamRepo, provider, reconciler, locker, streamKeys, events, metrics, log)
	webhooks := services.NewWebhookService(
		livekit.NewWebhookVerifier(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret),
		streamRepo,
		streamKeys,
		events,
		metrics,
		log,
	)
	authService := services.NewAuthService(cfg.Auth.JWTSecret)

	// Health checks
	checker := monitoring.NewHealthChecker()
	checker.AddRepositoryCheck(streamRepo, 15*time.Second, 2*time.Second)
	if redisClient != nil {
		checker.AddRedisCheck(redisClient, 15*time.Second, 2*time.Second)
	}
	checker.AddProviderCheck(lkClient, 30*time.Second, cfg.LiveKit.RequestTimeout)
	checker.StartBackgroundChecks(rootCtx, func(name string, err error) {
		log.Warnw("health check failed", "check", name, "error", err)
	})

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestID(),
		middleware.TracingMiddleware(),
		middleware.RequestLogger(log),
		middleware.CORS(cfg.Auth.AllowedOrigins),
		middleware.ErrorHandlerMiddleware(log),
	)

	httphandlers.NewHealthHandler(checker).SetupRoutes(router, gatherer)
	httphandlers.NewIngressHandler(provisioner, streamKeys).SetupRoutes(router,
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.AuthMiddleware(authService),
	)
	httphandlers.NewWebhookHandler(webhooks, cfg.Server.MaxBodyBytes, log).SetupRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting streamgate on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down streamgate...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	// Stop background work before closing the clients it uses.
	cancel()

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}

	log.Info("streamgate stopped")
}
