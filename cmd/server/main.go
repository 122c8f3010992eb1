package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/api"
	"github.com/adaptifi/swapcore/internal/api/handlers"
	"github.com/adaptifi/swapcore/internal/cache"
	"github.com/adaptifi/swapcore/internal/config"
	"github.com/adaptifi/swapcore/internal/database"
	"github.com/adaptifi/swapcore/internal/middleware"
	"github.com/adaptifi/swapcore/internal/services"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// Postgres backs the order audit trail; the service runs without it.
	var db *database.PostgresDB
	var store services.OrderStore
	var perfStore services.PerformanceStore
	if cfg.Database.Enabled {
		db, err = database.NewPostgresConnection(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		repo := database.NewOrderRepository(db.Pool)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
		store = repo
		perfStore = repo
		logger.Info("Postgres connected, order audit trail enabled")
	}

	// Redis backs the depth cache; without it depth falls back to memory.
	var redisClient *database.RedisClient
	depthTTL := 5 * time.Minute
	var depthCache *cache.DepthCache
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisConnection(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		depthCache = cache.NewDepthCache(redisClient.Client, depthTTL, logger)
		logger.Info("Redis connected, depth cache enabled")
	} else {
		depthCache = cache.NewDepthCache(nil, depthTTL, logger)
	}

	aggregator := services.NewVolatilityAggregator(cfg.Volatility, logger)
	optimizer := services.NewSlippageOptimizer(cfg.Optimizer, perfStore, logger)
	calculator := services.NewSlippageCalculator(cfg.Slippage, aggregator, depthCache, optimizer, logger)
	ledger := services.NewMemoryLedger()
	venue := services.NewLogVenue(logger)
	manager := services.NewOrderLifecycleManager(cfg.Orders, calculator, aggregator, optimizer, ledger, venue, store, logger)
	coordinator := services.NewAtomicSwapCoordinator(cfg.Swaps, ledger, logger)

	auth := middleware.NewAuthMiddleware(cfg.Security.JWTSecret, cfg.Security.AdminSecretHash)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, api.Dependencies{
		DB:         db,
		Redis:      redisClient,
		Auth:       auth,
		Orders:     handlers.NewOrderHandler(manager, logger),
		Swaps:      handlers.NewSwapHandler(coordinator, logger),
		Volatility: handlers.NewVolatilityHandler(aggregator, calculator, depthCache, depthTTL, logger),
		Slippage:   handlers.NewSlippageHandler(calculator, logger),
		Optimizer:  handlers.NewOptimizerHandler(optimizer, logger),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
