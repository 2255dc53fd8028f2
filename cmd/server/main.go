package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/monitor-ad-exchange/internal/broadcast"
	"github.com/iliyamo/monitor-ad-exchange/internal/config"
	"github.com/iliyamo/monitor-ad-exchange/internal/database"
	"github.com/iliyamo/monitor-ad-exchange/internal/handler"
	"github.com/iliyamo/monitor-ad-exchange/internal/middleware"
	"github.com/iliyamo/monitor-ad-exchange/internal/queue"
	"github.com/iliyamo/monitor-ad-exchange/internal/repository"
	"github.com/iliyamo/monitor-ad-exchange/internal/router"
	"github.com/iliyamo/monitor-ad-exchange/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs rate limiting and the public catalogue cache. A nil
	// client degrades both to no-ops.
	rdb := config.NewRedisClient()

	// Repositories.
	store := repository.NewStore(db)
	monitorRepo := repository.NewMonitorRepo(db)
	bidRepo := repository.NewBidRepo(db)
	playlistRepo := repository.NewPlaylistRepo(db)
	walletRepo := repository.NewWalletRepo(db)
	metricsRepo := repository.NewMetricsRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	// Realtime hub and notification channel.
	hub := broadcast.NewHub(metricsRepo)
	notifier := queue.NewPublisher(cfg.RabbitURL)
	go func() {
		if err := queue.StartNotifyConsumer(); err != nil {
			log.Printf("notify consumer stopped: %v", err)
		}
	}()

	// Engine.
	bids := service.NewBidService(store, service.GridPartitioner{}, notifier, hub, int64(cfg.CommissionPercent))
	monitors := service.NewMonitorService(store, hub)
	wallet := service.NewWalletService(store, walletRepo, hub)

	// Handlers.
	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	monitorHandler := handler.NewMonitorHandler(monitors, monitorRepo)
	bidHandler := handler.NewBidHandler(bids, bidRepo)
	playlistHandler := handler.NewPlaylistHandler(playlistRepo)
	walletHandler := handler.NewWalletHandler(wallet, metricsRepo)
	wsHandler := handler.NewWSHandler(hub)

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, monitorHandler, cache)
	router.RegisterOwner(e, monitorHandler, playlistHandler, cfg.JWTSecret)
	router.RegisterBids(e, bidHandler, monitorHandler, cfg.JWTSecret)
	router.RegisterWallet(e, walletHandler, cfg.JWTSecret)
	router.RegisterWS(e, wsHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
