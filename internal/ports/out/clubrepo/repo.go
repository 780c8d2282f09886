package clubrepo

import (
	"context"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

// Repository is the club registry: a keyed collection from ClubID to Club.
//
// There is no partial-field update. Callers fetch a record, mutate a private copy and
// Put the whole record back; Put either installs the new record or leaves the old one.
type Repository interface {
	// Get returns ErrNotFound if no club exists under id.
	Get(ctx context.Context, id domain.ClubID) (domain.Club, error)
	// Put replaces the record stored under id unconditionally.
	Put(ctx context.Context, id domain.ClubID, c domain.Club) error
}
