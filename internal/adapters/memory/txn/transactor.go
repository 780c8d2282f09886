package txn

import "context"

// Participant is an in-memory store that can roll itself back.
type Participant interface {
	Snapshot() (restore func())
}

// Transactor is the in-memory txn.Transactor. It snapshots every participant before
// running fn and restores them all if fn fails.
//
// Units of work must be serialized by the caller; a concurrent writer outside the unit
// of work would be overwritten by a rollback.
type Transactor struct {
	parts []Participant
}

func NewTransactor(parts ...Participant) *Transactor {
	return &Transactor{parts: parts}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctxWithTx context.Context) error) error {
	restores := make([]func(), 0, len(t.parts))
	for _, p := range t.parts {
		restores = append(restores, p.Snapshot())
	}
	if err := fn(ctx); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}
