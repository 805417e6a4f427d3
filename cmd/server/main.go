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

	"crmhub/internal/database"
	"crmhub/internal/handlers"
	"crmhub/internal/router"
	"crmhub/internal/services"
	"crmhub/pkg/cache"
	"crmhub/pkg/config"
	"crmhub/pkg/jwt"
	"crmhub/pkg/logger"
	"crmhub/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting CRM authorization service...")

	// 初始化数据库
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	// Redis 客户端由 database.CloseRedis 关闭
	store, pinger := buildPermissionCache(cfg)

	resolver := services.NewPermissionResolver(database.GetDB(),
		services.WithCache(store),
		services.WithMetrics(m),
		services.WithLogger(appLogger),
	)

	if cfg.Seed.RunOnBoot {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := seedData(ctx, database.GetDB(), resolver, cfg.Seed)
		cancel()
		if err != nil {
			appLogger.Fatalf("Failed to initialize seed data: %v", err)
		}
	}

	gin.SetMode(cfg.Server.Mode)

	r := router.SetupRouter(router.Dependencies{
		Config:   cfg,
		DB:       database.GetDB(),
		Resolver: resolver,
		Metrics:  m,
		JWT:      jwt.GetManager(),
		Cache:    pinger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
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

// buildPermissionCache 按配置选择权限缓存后端；Redis 不可用时退回不缓存
func buildPermissionCache(cfg *config.Config) (cache.Store, handlers.Pinger) {
	appLogger := logger.GetLogger()
	pc := cfg.PermissionCache

	switch pc.Backend {
	case config.CacheBackendMemory:
		appLogger.WithField("ttl", pc.TTL).Info("Permission cache: memory")
		return cache.NewMemoryStore(pc.Size, pc.TTL), nil
	case config.CacheBackendRedis:
		store := cache.NewRedisStore(database.GetRedisClient(), cfg.Redis.Prefix, pc.TTL)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			appLogger.WithError(err).Warn("Redis unavailable, permission cache disabled")
			return cache.NoopStore{}, nil
		}
		appLogger.WithField("ttl", pc.TTL).Info("Permission cache: redis")
		return store, store
	default:
		return cache.NoopStore{}, nil
	}
}
