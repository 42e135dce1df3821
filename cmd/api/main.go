package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/farm-cart/internal/api"
	"github.com/example/farm-cart/internal/catalog"
	"github.com/example/farm-cart/internal/config"
	"github.com/example/farm-cart/internal/domain/cart"
	"github.com/example/farm-cart/internal/infrastructure/kafka"
	"github.com/example/farm-cart/internal/infrastructure/store"
	"github.com/example/farm-cart/internal/metrics"
	"github.com/example/farm-cart/internal/pricing"
	"github.com/example/farm-cart/internal/stock"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	cmd := &cli.Command{
		Name:  "farm-cart",
		Usage: "Shopping cart service for the farm shop",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the cart HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Create the cart tables",
				Action: migrate,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

func migrate(ctx context.Context, _ *cli.Command) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL, store.DefaultPoolConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("migration complete")
	return nil
}

func serve(ctx context.Context, _ *cli.Command) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting cart service",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("stock_api", cfg.StockAPIURL),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("currency", cfg.Currency))

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL, store.DefaultPoolConfig)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	reg := metrics.NewRegistry()

	seed := time.Now().UnixNano()
	if cfg.PriceSeed != nil {
		seed = *cfg.PriceSeed
	}
	pricer := pricing.NewGenerator(rand.New(rand.NewSource(seed)))

	cartSvc := cart.NewService(
		cart.Config{Currency: cfg.Currency, StockConcurrency: cfg.StockConcurrency},
		store.NewPostgresCartStore(db),
		catalog.NewPostgresSearcher(db, catalog.Options{ApplyFilters: cfg.ApplyFilters}, logger),
		stock.NewClient(cfg.StockAPIURL, cfg.StockTimeout, reg, logger),
		pricer,
		reg,
		logger,
	)

	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		cartSvc.WithPublisher(producer)
		logger.Info("publishing cart events", zap.String("topic", cfg.KafkaTopic))
	}

	router := api.NewRouter(api.RouterConfig{
		Handlers: api.NewHandlers(cartSvc, logger),
		Metrics:  reg.Handler(),
		Health:   db.PingContext,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
