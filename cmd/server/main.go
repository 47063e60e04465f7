package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/api"
	"github.com/jafarshop/delifast/internal/api/handlers"
	"github.com/jafarshop/delifast/internal/cache"
	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/delifast"
	"github.com/jafarshop/delifast/internal/events"
	"github.com/jafarshop/delifast/internal/metrics"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/internal/repository/memory"
	"github.com/jafarshop/delifast/internal/repository/postgres"
	"github.com/jafarshop/delifast/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Delifast server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("store_driver", cfg.StoreDriver),
	)

	// Initialize repositories
	var repos *repository.Repositories
	if cfg.StoreDriver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		repos = memory.NewRepositories()
	} else {
		var db *sql.DB
		db, err = postgres.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if cfg.RunMigrations {
			if err := postgres.RunMigrations(db, logger); err != nil {
				logger.Fatal("Failed to run migrations", zap.Error(err))
			}
		}
		repos = postgres.NewRepositories(db, logger)
	}

	// Webhook dedupe: redis when configured, process memory otherwise
	var dedupe cache.WebhookDedupe = cache.NewMemoryDedupe()
	if cfg.Redis.Addr != "" {
		redisDedupe, err := cache.NewRedisDedupe(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisDedupe.Close()
		dedupe = redisDedupe
	}

	// Shipment events: kafka when configured
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer producer.Close()
		publisher = producer
		logger.Info("Publishing shipment events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	carrier := service.InstrumentCarrier(
		delifast.NewClient(cfg.Delifast.BaseURL, cfg.Delifast.APIKey, cfg.Delifast.Timeout, logger), m)
	shopifySvc := service.NewShopifyService(cfg.Shopify, repos.Shop, logger)
	workflow := service.NewOrderWorkflow(repos, carrier, shopifySvc, publisher, logger).
		WithLookupDelay(cfg.Lookup.Delay).
		WithMetrics(m)

	svc := &handlers.Services{
		Repos:    repos,
		Workflow: workflow,
		Shops:    service.NewShopService(repos, shopifySvc, cfg.Shopify.AppURL, logger),
		Settings: service.NewSettingsService(repos.StoreSettings, logger),
		Orders:   shopifySvc,
		Dedupe:   dedupe,
		Metrics:  m,
	}

	// Initialize router
	router := api.NewRouter(cfg, svc, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Temporary shipment id lookup: runs on startup, then every LOOKUP_INTERVAL
	lookupCtx, stopLookup := context.WithCancel(context.Background())
	defer stopLookup()
	go service.RunLookupLoop(lookupCtx, workflow, cfg.Lookup, logger)
	logger.Info("Shipment id lookup job started", zap.Duration("interval", cfg.Lookup.Interval))

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopLookup()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newLogger builds the production JSON logger in production and the development
// logger otherwise, at LOG_LEVEL
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = level
	}
	return zapCfg.Build()
}
