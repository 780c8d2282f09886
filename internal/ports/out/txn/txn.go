package txn

import "context"

// Transactor runs fn as one unit of work. Stores that participate in the unit of work
// pick it up from ctxWithTx; if fn returns an error, none of their writes persist.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctxWithTx context.Context) error) error
}
