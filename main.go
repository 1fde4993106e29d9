package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gigbook-backend/cache"
	"gigbook-backend/controller"
	"gigbook-backend/dal"
	"gigbook-backend/middelware"
	"gigbook-backend/models"
	"gigbook-backend/repository"
	"gigbook-backend/services"
	"gigbook-backend/utils"
	"gigbook-backend/utils/logger"
	"gigbook-backend/worker"

	"github.com/gin-gonic/gin"
)

const (
	shutdownTimeout      = 15 * time.Second
	tokenCleanupInterval = 10 * time.Minute
)

var config *models.Config

func Init() {
	var err error
	config, err = utils.GetConfig()
	if err != nil {
		log.Fatal(err)
	}
}

// @title GigBook Contacts API
// @version 1.0
// @description Organizations, persons and the links between them, served from a live per-tenant cache.
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	Init()
	appLogger := logger.NewLogger(config.LogLevel, config.LogFormat)
	appLogger.Debugf("Config loaded: %s", dal.PrintPrettyJSON(config))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dalContainer, err := dal.NewDALContainer(ctx, config, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to initialize store: %v", err)
	}

	caches, err := cache.NewManager(ctx, dalContainer.GetChangeFeed(), config, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to initialize live cache: %v", err)
	}
	defer caches.Close()

	// Infrastructure worker creates missing tables, once or on a cron schedule
	infraWorker, err := worker.NewWorker(dalContainer.GetDatabaseClient(), config, worker.NewWorkerConfig(config), appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to create infrastructure worker: %v", err)
	}
	if err := infraWorker.Start(); err != nil {
		appLogger.Fatalf("Failed to start infrastructure worker: %v", err)
	}
	defer infraWorker.Stop()

	container := services.NewService(
		repository.NewRepository(dalContainer.GetDatabaseClient(), config, appLogger),
		dalContainer,
		caches,
		infraWorker,
		appLogger,
		config,
	)

	jwtManager := middelware.NewJWTManager(config, appLogger)
	go cleanupRevokedTokens(ctx, jwtManager)

	if config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	logging := middelware.NewLoggingMiddleware(appLogger)
	r.Use(logging.Recovery(), logging.StructuredLogger(), middelware.NewCORSMiddleware(config).CORS())

	controller.NewController(container, jwtManager, config, appLogger).RegisterRoutes(r, config.BasePath)

	server := &http.Server{
		Addr:              net.JoinHostPort(config.AppHost, config.AppPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Infof("%s %s listening on %s", config.AppName, config.AppVersion, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Errorf("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("Graceful shutdown failed: %v", err)
		os.Exit(1)
	}
}

func cleanupRevokedTokens(ctx context.Context, jwtManager *middelware.JWTManager) {
	ticker := time.NewTicker(tokenCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jwtManager.CleanupExpiredTokens()
		}
	}
}
