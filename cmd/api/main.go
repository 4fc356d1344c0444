package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/tradelinehq/tradeline/api/routes"
	"github.com/tradelinehq/tradeline/internal/credit"
	"github.com/tradelinehq/tradeline/internal/ledger"
	"github.com/tradelinehq/tradeline/internal/notifications"
	"github.com/tradelinehq/tradeline/internal/orders"
	"github.com/tradelinehq/tradeline/internal/routing"
	"github.com/tradelinehq/tradeline/internal/stock"
	"github.com/tradelinehq/tradeline/pkg/config"
	"github.com/tradelinehq/tradeline/pkg/db"
	"github.com/tradelinehq/tradeline/pkg/logger"
	"github.com/tradelinehq/tradeline/pkg/migrate"
	"github.com/tradelinehq/tradeline/pkg/outbox"
	"github.com/tradelinehq/tradeline/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	ledgerSvc, err := ledger.NewService(ledgerRepo, dbClient, publisher, notifySvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
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
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, machine, creditSvc, stockSvc, routingSvc, publisher, notifySvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, ordersSvc, routingSvc, ledgerSvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
