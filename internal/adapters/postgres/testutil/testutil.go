//go:build integration

// Package testutil starts a throwaway Postgres for adapter integration tests.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	postgres "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres"
)

var (
	once    sync.Once
	dsn     string
	initErr error
)

// OpenMigratedPool returns a pool on a migrated, empty database. TEST_DATABASE_URL
// selects an existing server; otherwise one container is started per test binary.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	once.Do(func() {
		if v := os.Getenv("TEST_DATABASE_URL"); v != "" {
			dsn = v
			return
		}
		var c *tcpostgres.PostgresContainer
		c, initErr = tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("club_registry"),
			tcpostgres.WithUsername("club"),
			tcpostgres.WithPassword("club"),
			tcpostgres.BasicWaitStrategies(),
		)
		if initErr != nil {
			return
		}
		// Ryuk reaps the container when the test binary exits.
		dsn, initErr = c.ConnectionString(ctx, "sslmode=disable")
	})
	if initErr != nil {
		t.Fatalf("start postgres: %v", initErr)
	}

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 4, MaxConnIdleTime: time.Minute})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE clubs, club_members, ledger_accounts, club_events, idempotency_keys`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}
