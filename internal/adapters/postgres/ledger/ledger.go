package ledger

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/ledger"
)

// Ledger is a Postgres implementation of ledger.Ledger. Accounts with a zero balance
// have no row.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Transfer(ctx context.Context, from, to domain.AccountID, amount uint64, req ledger.ExistenceRequirement) error {
	if l.pool == nil {
		return errors.New("nil postgres pool")
	}
	return postgres.InTx(ctx, l.pool, func(q postgres.Querier) error {
		// Lock in a stable order so concurrent opposite transfers cannot deadlock.
		first, second := from, to
		if second < first {
			first, second = second, first
		}
		fromBal, toBal := uint64(0), uint64(0)
		for _, acct := range []domain.AccountID{first, second} {
			bal, err := balanceForUpdate(ctx, q, acct)
			if err != nil {
				return err
			}
			if acct == from {
				fromBal = bal
			}
			if acct == to {
				toBal = bal
			}
		}

		if fromBal < amount {
			return ledger.ErrInsufficientFunds
		}
		if from == to {
			return nil
		}
		if req == ledger.KeepAlive && amount > 0 && fromBal == amount {
			return ledger.ErrWouldReap
		}
		if toBal > math.MaxUint64-amount {
			return ledger.ErrBalanceOverflow
		}
		if err := setBalance(ctx, q, from, fromBal-amount); err != nil {
			return err
		}
		return setBalance(ctx, q, to, toBal+amount)
	})
}

func (l *Ledger) Deposit(ctx context.Context, account domain.AccountID, amount uint64) error {
	if l.pool == nil {
		return errors.New("nil postgres pool")
	}
	return postgres.InTx(ctx, l.pool, func(q postgres.Querier) error {
		bal, err := balanceForUpdate(ctx, q, account)
		if err != nil {
			return err
		}
		if bal > math.MaxUint64-amount {
			return ledger.ErrBalanceOverflow
		}
		return setBalance(ctx, q, account, bal+amount)
	})
}

func (l *Ledger) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	if l.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	return scanBalance(postgres.Conn(ctx, l.pool).QueryRow(ctx, `
		SELECT balance::text FROM ledger_accounts WHERE account_id = $1
	`, string(account)))
}

func balanceForUpdate(ctx context.Context, q postgres.Querier, account domain.AccountID) (uint64, error) {
	return scanBalance(q.QueryRow(ctx, `
		SELECT balance::text FROM ledger_accounts WHERE account_id = $1 FOR UPDATE
	`, string(account)))
}

func scanBalance(row pgx.Row) (uint64, error) {
	var s string
	if err := row.Scan(&s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}

func setBalance(ctx context.Context, q postgres.Querier, account domain.AccountID, bal uint64) error {
	if bal == 0 {
		_, err := q.Exec(ctx, `DELETE FROM ledger_accounts WHERE account_id = $1`, string(account))
		return err
	}
	_, err := q.Exec(ctx, `
		INSERT INTO ledger_accounts (account_id, balance)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account_id) DO UPDATE SET balance = EXCLUDED.balance
	`, string(account), strconv.FormatUint(bal, 10))
	return err
}
