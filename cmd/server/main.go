package main

import (
	"alcyxob/personal-coach/internal/api"
	"alcyxob/personal-coach/internal/config"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/logging"
	"alcyxob/personal-coach/internal/metrics"
	"alcyxob/personal-coach/internal/repository"
	"alcyxob/personal-coach/internal/repository/memory"
	"alcyxob/personal-coach/internal/repository/mongo"
	"alcyxob/personal-coach/internal/service"
	"alcyxob/personal-coach/internal/storage"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("could not load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Log)
	slog.SetDefault(logger)
	logger.Info("starting personal coach server", "address", cfg.Server.Address, "database", cfg.Database.Driver)

	// --- Document Store ---
	var store repository.DocumentStore
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("using the in-memory store, data is lost on restart")
		store = memory.NewStore()
	default:
		conn, err := mongo.Open(context.Background(), cfg.Database.URI, cfg.Database.Name)
		if err != nil {
			logger.Error("could not connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("disconnecting MongoDB")
			if err := conn.Close(); err != nil {
				logger.Error("failed to disconnect MongoDB", "error", err)
			}
		}()
		appDB := conn.DB

		go func() { // index creation runs in the background
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()
			mongo.EnsureIndexes(ctx, appDB, logger)
		}()
		store = mongo.NewStore(appDB)
	}

	// --- Identity ---
	directory, err := identity.NewDirectory(store, identity.Options{
		Secret:            cfg.JWT.Secret,
		TokenTTL:          cfg.JWT.Expiration,
		MaxFailedAttempts: cfg.Identity.MaxFailedAttempts,
		Lockout:           cfg.Identity.Lockout,
	})
	if err != nil {
		logger.Error("could not initialize identity directory", "error", err)
		os.Exit(1)
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := service.Deps{
		Store:   store,
		Metrics: metrics.New(registry),
		Logger:  logger,
	}

	// --- Object Storage (optional) ---
	if cfg.S3.Enabled() {
		fileStorage, err := storage.NewS3Storage(context.Background(), cfg.S3, logger)
		if err != nil {
			logger.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		deps.Storage = fileStorage
	} else {
		logger.Info("s3.bucket_name not set, exercise video uploads are disabled")
	}

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))
	api.SetupRoutes(router, &api.Services{Deps: deps, Directory: directory}, registry)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
	}
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exiting")
}
