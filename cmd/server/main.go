package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/damon-houk/fx-rates-sync/internal/application/service"
	"github.com/damon-houk/fx-rates-sync/internal/application/worker"
	"github.com/damon-houk/fx-rates-sync/internal/domain/repository"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/api"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/cache"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/config"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/db"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/handler"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/middleware"
	"github.com/dgraph-io/badger/v3"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetDefaultLogger()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal("Invalid log level", map[string]interface{}{
			"level": cfg.Log.Level,
			"error": err.Error(),
		})
	}
	log = logger.NewJSONLogger(os.Stdout, level)
	logger.SetDefaultLogger(log)

	log.Info("Starting FX rates sync server", cfg.LogFields())

	store, closeStore, err := openStore(cfg.Store, log)
	if err != nil {
		log.Fatal("Failed to open store", map[string]interface{}{
			"driver": cfg.Store.Driver,
			"error":  err.Error(),
		})
	}
	defer closeStore()

	client := api.NewCurrencyLayerClient(api.ClientOptions{
		BaseURL:    cfg.RateSource.BaseURL,
		AccessKey:  cfg.RateSource.AccessKey,
		HTTPClient: &http.Client{Timeout: cfg.RateSource.Timeout},
		MaxRetries: cfg.RateSource.MaxRetries,
		RetryDelay: cfg.RateSource.RetryDelay,
		Logger:     log,
	})

	repo := db.NewCachedCurrencyRepository(store, client, log)
	coordinator := service.NewRatesCoordinator(repo, log)
	defer coordinator.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initDone := make(chan struct{})
	go func() {
		defer close(initDone)
		coordinator.Init(ctx)
	}()

	schedulerDone := make(chan struct{})
	if cfg.Refresh.Enabled {
		job := worker.NewRefreshJob(worker.StaticProvider(repo), worker.WithLogger(log))
		scheduler := worker.NewScheduler(job, worker.SchedulerOptions{
			Interval: cfg.Refresh.Interval,
			Logger:   log,
		})
		go func() {
			defer close(schedulerDone)
			scheduler.Start(ctx)
		}()
	} else {
		close(schedulerDone)
	}

	ratesHandler := handler.NewRatesHandler(coordinator, log)

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.RecoveryMiddleware(log))
	ratesHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"addr": server.Addr,
		})
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped unexpectedly", map[string]interface{}{
				"error": err.Error(),
			})
		}
	case <-ctx.Done():
		log.Info("Shutting down", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// background loaders must not add to the repository's pending work once Wait begins
	stop()
	<-initDone
	<-schedulerDone
	repo.Wait()
	log.Info("Server stopped", nil)
}

// openStore opens the configured local cache and returns its close func
func openStore(cfg config.Store, log logger.Logger) (repository.CurrencyStore, func(), error) {
	if cfg.Driver == config.StoreDriverMemory {
		log.Warn("Using in-memory store; cached data is lost on restart", nil)
		return cache.NewMemoryStore(), func() {}, nil
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	badgerOpts := badger.DefaultOptions(cfg.Path)
	badgerOpts.Logger = nil

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	closeFn := func() {
		if err := badgerDB.Close(); err != nil {
			log.Error("Error closing BadgerDB", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return db.NewBadgerCurrencyStore(badgerDB), closeFn, nil
}
