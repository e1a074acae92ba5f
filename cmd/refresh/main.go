// Command refresh performs a single forced rate refresh and exits.
// It is meant for external schedulers such as cron.
//
// Exit codes: 0 refreshed, 75 try again later, 1 permanent failure.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/damon-houk/fx-rates-sync/internal/application/worker"
	"github.com/damon-houk/fx-rates-sync/internal/domain/repository"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/api"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/config"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/db"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
	"github.com/dgraph-io/badger/v3"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitRetry   = 75
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		return exitFailure
	}
	log := logger.NewJSONLogger(os.Stdout, level)
	logger.SetDefaultLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
		return exitFailure
	}
	if cfg.Store.Driver != config.StoreDriverBadger {
		log.Error("One-shot refresh needs a persistent store", map[string]interface{}{
			"driver": cfg.Store.Driver,
		})
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		badgerDB *badger.DB
		repo     *db.CachedCurrencyRepository
	)
	defer func() {
		if repo != nil {
			repo.Wait()
		}
		if badgerDB != nil {
			badgerDB.Close()
		}
	}()

	// the store is opened lazily so a locked database maps to a retry
	provider := func(ctx context.Context) (repository.CurrencyRepository, error) {
		opts := badger.DefaultOptions(cfg.Store.Path)
		opts.Logger = nil

		var err error
		badgerDB, err = badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		client := api.NewCurrencyLayerClient(api.ClientOptions{
			BaseURL:    cfg.RateSource.BaseURL,
			AccessKey:  cfg.RateSource.AccessKey,
			HTTPClient: &http.Client{Timeout: cfg.RateSource.Timeout},
			MaxRetries: cfg.RateSource.MaxRetries,
			RetryDelay: cfg.RateSource.RetryDelay,
			Logger:     log,
		})

		repo = db.NewCachedCurrencyRepository(db.NewBadgerCurrencyStore(badgerDB), client, log)
		return repo, nil
	}

	job := worker.NewRefreshJob(provider, worker.WithWait(), worker.WithLogger(log))
	outcome := job.Run(ctx)

	log.Info("Refresh finished", map[string]interface{}{
		"outcome": outcome.String(),
	})

	switch outcome {
	case worker.OutcomeSuccess:
		return exitSuccess
	case worker.OutcomeRetry:
		return exitRetry
	default:
		return exitFailure
	}
}
