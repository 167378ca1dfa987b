package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/options-simulator/internal/config"
	"github.com/options-simulator/internal/handler"
	applog "github.com/options-simulator/internal/logger"
	"github.com/options-simulator/internal/middleware"
	"github.com/options-simulator/internal/repository"
	"github.com/options-simulator/internal/service"
	"github.com/options-simulator/internal/stream"
	"github.com/options-simulator/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := applog.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		zlog.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Auto migrate database
	if err := repository.AutoMigrate(db); err != nil {
		zlog.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize Redis
	rdb := initRedis(cfg, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories and services
	repos := repository.New(db)
	ledger := service.NewLedger(nil)
	priceService := service.NewPriceService(repos, rdb, cfg.Simulator.CandleInterval, zlog)
	tradingService := service.NewTradingService(repos, priceService, ledger, cfg.Trading, zlog, nil)
	userService := service.NewUserService(
		repos,
		ledger,
		decimal.NewFromFloat(cfg.Trading.StartingBalance),
		decimal.NewFromFloat(cfg.Trading.MaxDeposit),
		zlog,
	)

	if cfg.Simulator.SeedDefaults {
		if _, err := priceService.SeedDefaults(ctx); err != nil {
			zlog.Fatal("Failed to seed instruments", zap.Error(err))
		}
	}
	if err := priceService.Load(ctx); err != nil {
		zlog.Fatal("Failed to load prices", zap.Error(err))
	}

	// Websocket hub receives price ticks and settlements; settlements are
	// also published on redis when it is available
	hub := stream.NewHub(zlog)
	priceService.SetListener(hub)
	settlementListeners := service.SettlementListeners{hub}
	if rdb != nil {
		settlementListeners = append(settlementListeners, service.NewSettlementPublisher(rdb, zlog))
	}
	tradingService.SetSettlementListener(settlementListeners)

	// Background workers
	sweeper := worker.NewExpirationWorker(
		tradingService,
		repos.Trades,
		cfg.Trading.SweepInterval,
		cfg.Trading.SweepConcurrency,
		cfg.Trading.SweepBatchSize,
		zlog,
	)
	simulator := worker.NewPriceSimulator(
		priceService,
		cfg.Simulator.TickInterval,
		cfg.Simulator.Volatility,
		cfg.Simulator.Precision,
		zlog,
	)
	openLimiter := middleware.NewRateLimiter(cfg.Trading.OpenRatePerSecond, cfg.Trading.OpenRateBurst)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				openLimiter.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
	if cfg.Simulator.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			simulator.Start(ctx)
		}()
	}

	router := handler.NewRouter(
		handler.Services{
			Trading: tradingService,
			Users:   userService,
			Prices:  priceService,
			Hub:     hub,
		},
		openLimiter,
		handler.BuildInfo{Version: Version, Commit: Commit, BuildTime: BuildTime},
		zlog,
	)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		zlog.Info("Starting server", zap.String("addr", addr), zap.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server...")

	// Graceful shutdown with 10 second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop workers; a sweep in progress finishes first
	cancel()
	wg.Wait()

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			zlog.Warn("Error closing Redis connection", zap.Error(err))
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	zlog.Info("Server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.Path + "?_busy_timeout=5000&_journal_mode=WAL")
	default:
		dialector = postgres.Open(cfg.Database.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// initRedis returns nil when redis is disabled or unreachable; prices are
// then served from memory and the database only
func initRedis(cfg *config.Config, zlog *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Warn("Redis unavailable, continuing without price mirror", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	return rdb
}
