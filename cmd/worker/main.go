package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"contentfabric/internal/bootstrap"
	"contentfabric/internal/infra"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.StoreDriver != infra.StoreDriverPostgres {
		logger.Error().Str("store", cfg.StoreDriver).Msg("worker: a standalone worker needs the postgres driver; the api runs workers itself on badger")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer rt.Close()

	pool, err := rt.WorkerPool(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure providers")
	}

	logger.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker: started")
	if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	logger.Info().Msg("worker: stopped")
}
