package clubs

import (
	"context"
	"errors"
	"fmt"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/clubrepo"
)

func ensureSigned(o domain.Origin) (domain.AccountID, error) {
	if o.Kind != domain.OriginSigned || o.Account == "" {
		return "", ErrUnauthorized
	}
	return o.Account, nil
}

func ensureRoot(o domain.Origin) error {
	switch o.Kind {
	case domain.OriginRoot:
		return nil
	case domain.OriginSigned:
		return errPrivilege
	default:
		return ErrUnauthorized
	}
}

// ensureOwner checks caller against a club that has already been fetched.
func ensureOwner(caller domain.AccountID, c domain.Club) error {
	if c.Owner != caller {
		return ErrNotOwner
	}
	return nil
}

// loadClub resolves id once; the returned record is a private copy the caller may mutate.
func (s *Service) loadClub(ctx context.Context, id domain.ClubID) (domain.Club, error) {
	c, err := s.clubs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, clubrepo.ErrNotFound) {
			return domain.Club{}, withDetails(ErrClubDoesNotExist, map[string]any{"clubId": uint32(id)})
		}
		return domain.Club{}, fmt.Errorf("load club %d: %w", id, err)
	}
	return c.Clone(), nil
}

// loadOwnedClub is the owner-gated variant: signed caller, existing club, caller is owner.
func (s *Service) loadOwnedClub(ctx context.Context, o domain.Origin, id domain.ClubID) (domain.AccountID, domain.Club, error) {
	caller, err := ensureSigned(o)
	if err != nil {
		return "", domain.Club{}, err
	}
	c, err := s.loadClub(ctx, id)
	if err != nil {
		return "", domain.Club{}, err
	}
	if err := ensureOwner(caller, c); err != nil {
		return "", domain.Club{}, err
	}
	return caller, c, nil
}
