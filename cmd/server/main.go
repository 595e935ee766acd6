package main

import (
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/app"
	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/database"
	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/metrics"
	appmw "github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/queue"
	"github.com/iliyamo/slot-booking/internal/repository"
	"github.com/iliyamo/slot-booking/internal/router"
	"github.com/iliyamo/slot-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger := app.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	// Redis is optional: rate limiting falls back to per-process
	// limiters and the response cache is disabled when nil.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, using local rate limiter and no response cache")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	publisher := queue.NewPublisher(logger)

	slots := repository.NewSlotRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	svc := service.NewBookingService(slots, logger, publisher, collector)

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	slotHandler := handler.NewSlotHandler(svc)

	go func() {
		if err := queue.StartConsumer(logger); err != nil {
			logger.Warn("event consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler(registry)))

	router.RegisterRoutes(e, slotHandler, config.LoadCacheConfig(), rdb)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterSlots(e, slotHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
