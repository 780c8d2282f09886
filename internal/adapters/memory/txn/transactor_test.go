package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memclubrepo "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/clubrepo"
	memledger "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/ledger"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
	ledgerport "github.com/Overland-East-Bay/club-registry/internal/ports/out/ledger"
)

func TestTransactor_RollsBackAllParticipants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clubs := memclubrepo.NewRepo()
	ldg := memledger.NewLedger()
	require.NoError(t, ldg.Deposit(ctx, "57", 10))
	tx := NewTransactor(clubs, ldg)

	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := ldg.Transfer(ctx, "57", "56", 3, ledgerport.AllowDeath); err != nil {
			return err
		}
		if err := clubs.Put(ctx, 5, domain.NewClub("56", 3)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, _ := ldg.Balance(ctx, "57")
	assert.Equal(t, uint64(10), bal)
	_, err = clubs.Get(ctx, 5)
	assert.Error(t, err)
}

func TestTransactor_CommitKeepsWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clubs := memclubrepo.NewRepo()
	tx := NewTransactor(clubs)
	require.NoError(t, tx.WithinTx(ctx, func(ctx context.Context) error {
		return clubs.Put(ctx, 1, domain.NewClub("a", 1))
	}))
	_, err := clubs.Get(ctx, 1)
	assert.NoError(t, err)
}
