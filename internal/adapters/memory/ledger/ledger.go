package ledger

import (
	"context"
	"math"
	"sync"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/ledger"
)

// Ledger is an in-memory implementation of ledger.Ledger.
// It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	balances map[domain.AccountID]uint64
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[domain.AccountID]uint64)}
}

func (l *Ledger) Transfer(ctx context.Context, from, to domain.AccountID, amount uint64, req ledger.ExistenceRequirement) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBal := l.balances[from]
	if fromBal < amount {
		return ledger.ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	if req == ledger.KeepAlive && amount > 0 && fromBal == amount {
		return ledger.ErrWouldReap
	}
	toBal := l.balances[to]
	if toBal > math.MaxUint64-amount {
		return ledger.ErrBalanceOverflow
	}

	if fromBal-amount == 0 {
		delete(l.balances, from)
	} else {
		l.balances[from] = fromBal - amount
	}
	if toBal+amount > 0 {
		l.balances[to] = toBal + amount
	}
	return nil
}

func (l *Ledger) Deposit(ctx context.Context, account domain.AccountID, amount uint64) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balances[account]
	if bal > math.MaxUint64-amount {
		return ledger.ErrBalanceOverflow
	}
	if bal+amount > 0 {
		l.balances[account] = bal + amount
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	_ = ctx
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

// Snapshot captures all balances; calling restore puts them back.
func (l *Ledger) Snapshot() (restore func()) {
	l.mu.RLock()
	saved := make(map[domain.AccountID]uint64, len(l.balances))
	for k, v := range l.balances {
		saved[k] = v
	}
	l.mu.RUnlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.balances = saved
	}
}
