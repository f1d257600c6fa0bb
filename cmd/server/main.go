package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"osgb/internal/database"
	"osgb/internal/router"
	"osgb/internal/services"
	"osgb/pkg/cache"
	"osgb/pkg/config"
	"osgb/pkg/jwt"
	"osgb/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger := logger.GetLogger()
	appLogger.Info("Starting OSGB quota service...")

	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		if err := database.CloseRedis(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	if err := database.Migrate(); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := seedData(database.GetDB(), cfg.Seed); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	// redis is optional: without it the cache and the realtime stream are off
	var (
		redisCache *cache.RedisCache
		bus        *services.RedisEventBus
	)
	candidate := database.GetRedisCache()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := candidate.Ping(pingCtx); err != nil {
		appLogger.Warnf("Redis unavailable, cache and visit stream disabled: %v", err)
	} else {
		bus = services.NewRedisEventBus(candidate.GetClient(), cfg.Redis.Prefix)
		if cfg.Cache.Enabled {
			redisCache = candidate
		}
	}
	cancelPing()

	var publisher services.EventPublisher = services.NopEventPublisher{}
	if bus != nil {
		publisher = bus
	}

	if cfg.Scheduler.Enabled {
		visitService := services.NewVisitService(database.GetDB(), publisher)
		scheduler := services.NewQuotaScheduler(database.GetDB(), visitService,
			cfg.Scheduler.VisitPlanCron, cfg.Scheduler.OvercommitCron)
		if err := scheduler.Start(); err != nil {
			appLogger.Errorf("Failed to start quota scheduler: %v", err)
		} else {
			defer scheduler.Stop()
		}
	}

	r := router.SetupRouter(router.Dependencies{
		DB:            database.GetDB(),
		Cache:         redisCache,
		Bus:           bus,
		JWT:           jwt.GetJWTManager(),
		MinuteCeiling: cfg.Quota.MinuteCeiling,
		CORS:          cfg.CORS,
	})

	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// websocket streams are long-lived; per-write deadlines apply instead
		WriteTimeout: 0,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
