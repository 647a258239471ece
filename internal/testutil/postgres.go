// Package testutil starts a throwaway Postgres for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"contentfabric/internal/infra"
)

// IntegrationEnv gates container based tests.
const IntegrationEnv = "FABRIC_PG_INTEGRATION"

const (
	pgUser     = "fabric"
	pgPassword = "fabric"
	pgDB       = "fabric"
)

var tables = []string{
	"generation_queue",
	"generation_results",
	"generations",
	"generated_prompts",
	"prompt_templates",
	"parameters",
	"provider_credentials",
}

// TestDB is a migrated Postgres container shared by the tests of a package.
type TestDB struct {
	Pool      *pgxpool.Pool
	URL       string
	container testcontainers.Container
}

var (
	sharedOnce sync.Once
	shared     *TestDB
	sharedErr  error
)

// Postgres returns the shared container, starting and migrating it on first
// use, after truncating every table. The test is skipped unless
// FABRIC_PG_INTEGRATION is set.
func Postgres(t *testing.T) *TestDB {
	t.Helper()
	if os.Getenv(IntegrationEnv) == "" {
		t.Skipf("set %s=1 to run Postgres integration tests", IntegrationEnv)
	}
	sharedOnce.Do(func() {
		shared, sharedErr = start(context.Background())
	})
	if sharedErr != nil {
		t.Fatalf("start postgres container: %v", sharedErr)
	}
	shared.truncate(t)
	return shared
}

func start(ctx context.Context) (*TestDB, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDB,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgUser, pgPassword, host, port.Port(), pgDB)

	if _, err := infra.Migrate(url, zerolog.Nop()); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return &TestDB{Pool: pool, URL: url, container: container}, nil
}

func (db *TestDB) truncate(t *testing.T) {
	t.Helper()
	for _, table := range tables {
		if _, err := db.Pool.Exec(context.Background(), "truncate table "+table+" cascade"); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

// Runner returns an SQLRunner over the shared pool.
func (db *TestDB) Runner() *infra.SQLRunner {
	return infra.NewSQLRunner(db.Pool, zerolog.Nop())
}
