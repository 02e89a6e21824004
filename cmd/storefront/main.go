package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/events"
	"github.com/example/storefront/pkg/pricing"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := cfg.Log.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront API",
		zap.String("name", cfg.Server.Name),
		zap.String("address", cfg.Server.Addr()))

	taxRate, err := pricing.ParseTaxRate(cfg.Checkout.TaxRate)
	if err != nil {
		logger.Fatal("Invalid tax rate", zap.Error(err))
	}

	db, err := repository.Open(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	storage := repository.NewGormStorage(db, taxRate, logger.Named("storage"))
	if err := storage.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is a cache; the API keeps working when it is down.
	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}
	store := repository.NewCachedStore(storage, redisRepo, cfg.Cache.ProductTTL, cfg.Cache.UserTTL, logger.Named("cache"))

	var audit repository.AuditStore = repository.NewMemoryAuditStore()
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
		if err != nil {
			logger.Warn("MongoDB unavailable, keeping audit log in memory", zap.Error(err))
		} else {
			defer mongoRepo.Close(context.Background())
			audit = mongoRepo
			logger.Info("MongoDB audit log enabled")
		}
	}

	hub := events.NewHub(cfg.Server.AllowedOrigins, logger)
	defer hub.Close()
	dispatcher, err := events.NewDispatcher(audit, hub, cfg.Server.Name, logger)
	if err != nil {
		logger.Fatal("Failed to start event dispatcher", zap.Error(err))
	}
	defer dispatcher.Stop()

	sessions, err := auth.NewSessions(&cfg.Auth)
	if err != nil {
		logger.Fatal("Invalid auth config", zap.Error(err))
	}
	provider := auth.NewProvider(&cfg.Auth, store, sessions, logger)

	gin.SetMode(gin.ReleaseMode)
	gw := gateway.NewGateway(cfg, logger, gateway.Deps{
		Store:    store,
		Audit:    audit,
		Events:   dispatcher,
		Hub:      hub,
		Sessions: sessions,
		Provider: provider,
	})
	gw.SetupRoutes()

	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: gw.Handler()}
	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()
	logger.Info("Storefront API started", zap.String("address", srv.Addr))

	instance := &discovery.ServiceInstance{Name: cfg.Server.Name, Host: cfg.Server.Host, Port: cfg.Server.Port}
	var sd *discovery.ServiceDiscovery
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		} else {
			logger.Info("Service registered in etcd", zap.String("address", instance.Addr()))
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-srvErr:
		logger.Error("Server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			logger.Warn("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	logger.Info("Storefront API stopped")
}
