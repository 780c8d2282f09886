//go:build integration

package itest

import (
	"context"
	"testing"

	pgclubrepo "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres/clubrepo"
	pgeventlog "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres/eventlog"
	pgidempotency "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres/idempotency"
	pgledger "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres/ledger"
	"github.com/Overland-East-Bay/club-registry/internal/adapters/postgres"
	postgres_testutil "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres/testutil"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

func init() {
	backends[backendPostgres] = func(t *testing.T) storage {
		pool := postgres_testutil.OpenMigratedPool(t)
		outbox := pgeventlog.NewOutbox(pool)
		return storage{
			clubs:  pgclubrepo.NewRepo(pool),
			ledger: pgledger.NewLedger(pool),
			events: outbox,
			tx:     postgres.NewTransactor(pool),
			idem:   pgidempotency.NewStore(pool, "itest-issuer"),
			published: func(t *testing.T) []domain.Event {
				t.Helper()
				events, _, err := outbox.ListSince(context.Background(), 0, 1000)
				if err != nil {
					t.Fatalf("ListSince: %v", err)
				}
				return events
			},
		}
	}
}
