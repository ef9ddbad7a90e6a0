// Command reconcile sweeps the ingress and room resources owned by one
// broadcaster identity and prints the report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/services"
	"streamgate/internal/infrastructure/distributed"
	"streamgate/internal/infrastructure/livekit"
	"streamgate/internal/infrastructure/reliability"
	redisrepo "streamgate/internal/infrastructure/repositories/redis"
	"streamgate/pkg/config"
	"streamgate/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	var (
		identity   string
		configPath string
		dryRun     bool
	)

	flag.StringVar(&identity, "identity", "", "Broadcaster identity to sweep")
	flag.StringVar(&configPath, "config", "", "Path to config.yaml (defaults to the service search path)")
	flag.BoolVar(&dryRun, "dry-run", false, "List what would be deleted without deleting")
	flag.Parse()

	id := domain.BroadcasterID(identity)
	if !id.Valid() {
		fatalf("-identity is required")
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, _, err = config.LoadFirst(config.SearchPaths...)
	}
	if err != nil {
		fatalf("load config: %v", err)
	}

	// Logs go to stderr so stdout stays pure JSON.
	zapLogger, err := logger.New(cfg.Logging.Level, "console")
	if err != nil {
		fatalf("logger: %v", err)
	}
	log := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, id, dryRun, log)
	stop()
	_ = zapLogger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, id domain.BroadcasterID, dryRun bool, log *zap.SugaredLogger) int {
	provider := reliability.NewProviderWrapper(
		livekit.NewClient(livekit.Config{
			URL:            cfg.LiveKit.URL,
			APIKey:         cfg.LiveKit.APIKey,
			APISecret:      cfg.LiveKit.APISecret,
			RequestTimeout: cfg.LiveKit.RequestTimeout,
		}, log),
		reliability.RetryConfigFrom(cfg),
		reliability.CircuitBreakerConfigFrom(cfg),
		log,
		nil,
	)
	reconciler := services.NewReconcilerService(provider, provider, services.NewMetricsService(), log, cfg.Provisioning.MaxParallelDeletes)

	if dryRun {
		plan, err := reconciler.Plan(ctx, id)
		if err != nil {
			log.Errorw("plan failed", "identity", id, "error", err)
			return 1
		}
		return printJSON(plan)
	}

	// Hold the identity lock shared with the service so a sweep cannot
	// interleave with a provision in flight.
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, 2, cfg.Redis.KeyPrefix, log)
		if err != nil {
			log.Errorw("redis unavailable", "error", err)
			return 1
		}
		defer redisrepo.CloseRedisClient(client)

		locker := distributed.NewRedisIdentityLocker(client, cfg.Redis.KeyPrefix, cfg.Provisioning.LockTTL, cfg.Provisioning.LockTimeout)
		lease, err := locker.Acquire(ctx, id)
		if err != nil {
			log.Errorw("identity is locked", "identity", id, "error", err)
			return 1
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warnw("failed to release identity lock", "identity", id, "error", err)
			}
		}()
	} else {
		log.Warn("redis disabled, sweeping without the identity lock")
	}

	report, err := reconciler.Reconcile(ctx, id)
	if err != nil {
		log.Errorw("reconcile failed", "identity", id, "error", err)
		return 1
	}
	if code := printJSON(report); code != 0 {
		return code
	}
	if !report.Clean() {
		return 2
	}
	return 0
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
