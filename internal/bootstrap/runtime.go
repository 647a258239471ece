// Package bootstrap assembles the store, queue, service and providers from a
// Config so the api, worker and fabricctl binaries share one wiring.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/timshannon/badgerhold/v4"

	"contentfabric/internal/adapter/badgerstore"
	"contentfabric/internal/adapter/repo"
	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
	"contentfabric/internal/infra/credentials"
	"contentfabric/internal/providers"
	"contentfabric/internal/queue"
	"contentfabric/internal/service"
	"contentfabric/internal/storage"
	"contentfabric/internal/worker"
)

const badgerQueueName = "generation-tasks"

// Runtime holds the long-lived components of one process.
type Runtime struct {
	Config  *infra.Config
	Logger  infra.Logger
	Store   domain.Store
	Queue   queue.Queue
	Service *service.Service
	Files   *storage.FileStore

	// Credentials is nil on the badger driver, which has no token table.
	Credentials *credentials.Store

	pool   *pgxpool.Pool
	badger *badgerhold.Store
}

// Open connects the configured store driver and builds the service on top.
func Open(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}

	switch cfg.StoreDriver {
	case infra.StoreDriverBadger:
		db, err := badgerstore.Open(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		rt.badger = db
		q, err := queue.NewBadger(db.Badger(), badgerQueueName, cfg.QueueVisibility())
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Store = badgerstore.New(db)
		rt.Queue = q
	default:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		rt.pool = pool
		runner := infra.NewSQLRunner(pool, infra.Component(logger, "sql"))
		rt.Store = repo.NewStore(runner)
		rt.Queue = queue.NewPostgres(runner, cfg.QueueVisibility())
		rt.Credentials = credentials.NewStore(runner)
	}

	files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Files = files

	rt.Service = service.New(rt.Store, rt.Queue, service.Options{
		Queue: queue.Options{
			Attempts: cfg.Queue.Attempts,
			Backoff:  queue.Backoff{Type: queue.BackoffExponential, Delay: cfg.QueueBackoff()},
		},
	}, logger)
	return rt, nil
}

// Providers builds the provider registry. Keys missing from the config are
// looked up in the credentials table when one is available.
func (rt *Runtime) Providers(ctx context.Context) (*providers.Registry, error) {
	p := rt.Config.Provider
	keys := providers.Keys{
		providers.NameOpenAI:    p.OpenAIAPIKey,
		providers.NameGoogle:    p.GeminiAPIKey,
		providers.NameAnthropic: p.AnthropicAPIKey,
		providers.NameQwen:      p.QwenAPIKey,
	}
	if rt.Credentials != nil {
		if err := rt.Credentials.Fill(ctx, keys); err != nil {
			rt.Logger.Warn().Err(err).Msg("bootstrap: failed to load stored provider keys")
		}
	}
	synthetic := providers.NewSynthetic(time.Duration(p.SyntheticDelay)*time.Millisecond, rt.Logger)
	return providers.Build(ctx, keys, providers.Endpoints{OpenAI: p.OpenAIBaseURL, Qwen: p.QwenBaseURL}, synthetic, providers.NewThrottle(p.RatePerSec), rt.Logger)
}

// WorkerPool builds the queue consumers that run the task processor.
func (rt *Runtime) WorkerPool(ctx context.Context) (*queue.Pool, error) {
	registry, err := rt.Providers(ctx)
	if err != nil {
		return nil, err
	}
	workerLog := infra.Component(rt.Logger, "worker")
	proc := worker.NewProcessor(rt.Service, registry, rt.Files, workerLog)
	pool := queue.NewPool(rt.Queue, proc.Handle, rt.Config.Worker.Concurrency, rt.Config.QueuePollInterval(), workerLog)
	pool.OnDead(proc.Exhausted)
	return pool, nil
}

// RequireCredentials returns the credentials store or an error on drivers
// without one.
func (rt *Runtime) RequireCredentials() (*credentials.Store, error) {
	if rt.Credentials == nil {
		return nil, errors.New("credentials are stored only with the postgres driver")
	}
	return rt.Credentials, nil
}

// Close releases the database handles.
func (rt *Runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.badger != nil {
		if err := rt.badger.Close(); err != nil {
			rt.Logger.Warn().Err(err).Msg("bootstrap: failed to close badger store")
		}
	}
}
