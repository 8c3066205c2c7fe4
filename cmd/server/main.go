package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"election-system/internal/api"
	"election-system/internal/cache"
	"election-system/internal/database"
	"election-system/internal/ledger"
	"election-system/pkg/config"
	"election-system/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs/server.yaml")
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	appLogger := logger.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	appLogger.SetFormatter(cfg.Logging.Format)
	appLogger.Info("Starting election server...")

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		appLogger.Fatal("Failed to run migrations: %v", err)
	}

	ledgerClient, err := ledger.NewClient(&cfg.Ledger)
	if err != nil {
		appLogger.Fatal("Failed to connect to ledger: %v", err)
	}
	defer ledgerClient.Close()

	resultsCache, err := cache.New(&cfg.Redis, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis: %v", err)
	}
	if resultsCache != nil {
		defer resultsCache.Close()
	}

	services, err := api.NewServices(db, ledgerClient, resultsCache, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize services: %v", err)
	}
	defer services.Stop()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	api.SetupRoutes(router, services)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown: %v", err)
	}
	appLogger.Info("Server stopped")
}
