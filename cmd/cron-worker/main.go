package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradelinehq/tradeline/internal/credit"
	"github.com/tradelinehq/tradeline/internal/cron"
	"github.com/tradelinehq/tradeline/internal/ledger"
	"github.com/tradelinehq/tradeline/internal/notifications"
	"github.com/tradelinehq/tradeline/internal/orders"
	"github.com/tradelinehq/tradeline/internal/routing"
	"github.com/tradelinehq/tradeline/internal/stock"
	"github.com/tradelinehq/tradeline/pkg/config"
	"github.com/tradelinehq/tradeline/pkg/db"
	"github.com/tradelinehq/tradeline/pkg/logger"
	"github.com/tradelinehq/tradeline/pkg/metrics"
	"github.com/tradelinehq/tradeline/pkg/migrate"
	"github.com/tradelinehq/tradeline/pkg/outbox"
	"github.com/tradelinehq/tradeline/pkg/redis"
)

const lockKeyFormat = "tl:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersRepo := orders.NewRepository(conn)
	machine, err := orders.NewStateMachine(ordersRepo, dbClient, publisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create state machine", err)
		os.Exit(1)
	}
	ledgerRepo := ledger.NewRepository(conn)
	creditSvc, err := credit.NewService(credit.NewRepository(conn), dbClient, ledgerRepo, cfg.Credit)
	if err != nil {
		logg.Error(context.Background(), "failed to create credit service", err)
		os.Exit(1)
	}
	stockSvc, err := stock.NewService(stock.NewRepository(conn), dbClient, cfg.Stock)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}
	notifySvc, err := notifications.NewService(notifications.NewRepository(conn), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	routingSvc, err := routing.NewService(
		routing.NewRepository(conn),
		ordersRepo,
		machine,
		dbClient,
		creditSvc,
		stockSvc,
		publisher,
		notifySvc,
		routing.NewWeightedPolicy(cfg.Routing),
		cfg.Routing,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create routing service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewRoutingExpiryJob(routingSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create routing expiry job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(conn, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	dispatchJob, err := cron.NewNotificationDispatchJob(notifySvc, redisClient, logg, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatch job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, retentionJob, dispatchJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Routing.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
