package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"contentfabric/internal/bootstrap"
	"contentfabric/internal/http/handlers"
	httpapi "contentfabric/internal/http/httpapi"
	"contentfabric/internal/infra"
	"contentfabric/internal/infra/geoip"
	"contentfabric/internal/reconcile"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer rt.Close()

	var geo geoip.CountryResolver
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("geoip disabled")
	case resolver != nil:
		geo = resolver
		defer resolver.Close()
	}

	// The badger store is single-process, so the workers run in here.
	if cfg.StoreDriver == infra.StoreDriverBadger {
		pool, err := rt.WorkerPool(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure providers")
		}
		go func() {
			if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("embedded worker pool stopped")
			}
		}()
	}

	if cfg.ReconcileSchedule != "" {
		sweeper := reconcile.NewSweeper(rt.Store.Generations, rt.Service, cfg.ReconcileStaleAfter, infra.Component(logger, "reconcile"))
		if err := sweeper.Start(ctx, cfg.ReconcileSchedule); err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule reconcile sweep")
		}
		defer sweeper.Stop()
	}

	app := handlers.NewApp(rt.Service, rt.Files, infra.Component(logger, "http"))
	router := httpapi.NewRouter(app, httpapi.Options{
		CORSOrigins:     httpapi.SplitOrigins(cfg.CORSOrigin),
		RateLimitPerMin: cfg.RateLimitPerMin,
		Geo:             geo,
	})
	server := infra.NewHTTPServer(cfg, router, ctx)

	go func() {
		logger.Info().Str("store", cfg.StoreDriver).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
