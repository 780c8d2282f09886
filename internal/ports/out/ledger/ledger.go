package ledger

import (
	"context"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

// ExistenceRequirement controls what happens to a payer whose balance reaches zero.
type ExistenceRequirement int

const (
	// KeepAlive rejects a transfer that would leave the payer with a zero balance.
	KeepAlive ExistenceRequirement = iota
	// AllowDeath lets the payer's account be removed once its balance reaches zero.
	AllowDeath
)

// Ledger moves value between accounts.
type Ledger interface {
	// Transfer moves amount from one account to another. It fails with
	// ErrInsufficientFunds when the payer cannot cover amount, and leaves both
	// balances untouched on any error.
	Transfer(ctx context.Context, from, to domain.AccountID, amount uint64, req ExistenceRequirement) error

	// Deposit credits amount to account, creating it if needed.
	Deposit(ctx context.Context, account domain.AccountID, amount uint64) error

	// Balance returns the account balance; unknown accounts have a zero balance.
	Balance(ctx context.Context, account domain.AccountID) (uint64, error)
}
