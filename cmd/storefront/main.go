package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/northwear/storefront/api"
	"github.com/northwear/storefront/internal/cart"
	"github.com/northwear/storefront/internal/cartsync"
	"github.com/northwear/storefront/internal/catalog"
	"github.com/northwear/storefront/internal/config"
	"github.com/northwear/storefront/internal/database"
	"github.com/northwear/storefront/internal/orders"
	"github.com/northwear/storefront/internal/payment"
	"github.com/northwear/storefront/pkg/logger"
	"github.com/northwear/storefront/pkg/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is optional; without it the catalog reads straight from the DB.
	var productCache catalog.Cache
	if cfg.Redis.Addr != "" {
		redisClient, err := database.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zapLogger.Warn("Redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			productCache = catalog.NewRedisCache(redisClient)
		}
	}

	catalogSvc := catalog.NewService(db, productCache, zapLogger)
	hub := cartsync.NewHub(16, zapLogger)
	cartStore := cart.NewMemoryStore()
	cartSvc := cart.NewService(cartStore, catalogSvc, hub, zapLogger)
	notifier := orders.NewLogNotifier(zapLogger)
	ordersSvc := orders.NewService(db, cartSvc, catalogSvc, notifier, zapLogger)

	providerClient := payment.NewClient(
		cfg.Payment.BaseURL,
		cfg.Payment.APIKey,
		cfg.Payment.ShopID,
		cfg.Server.AppURL,
		time.Duration(cfg.Payment.Timeout)*time.Second,
		zapLogger,
	)
	paymentSvc := payment.NewService(db, providerClient, ordersSvc, zapLogger)

	apiServer := api.NewServer(zapLogger, cfg.CORS.AllowedOrigin, cartSvc, catalogSvc, ordersSvc, paymentSvc, hub)

	// DB pool metrics every 30s.
	poolTicker := time.NewTicker(30 * time.Second)
	defer poolTicker.Stop()
	go func() {
		for range poolTicker.C {
			if sqlDB, err := db.DB(); err == nil {
				stats := sqlDB.Stats()
				metrics.DBOpenConns.Set(float64(stats.OpenConnections))
				metrics.DBIdleConns.Set(float64(stats.Idle))
				metrics.DBInUseConns.Set(float64(stats.InUse))
			}
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := apiServer.Start(addr); err != nil {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	hub.Shutdown()

	zapLogger.Info("Server exited properly")
}
