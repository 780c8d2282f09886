package clubrepo

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/clubrepo"
)

// Repo is an in-memory implementation of clubrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.ClubID]domain.Club
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.ClubID]domain.Club),
	}
}

func (r *Repo) Get(ctx context.Context, id domain.ClubID) (domain.Club, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return domain.Club{}, clubrepo.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *Repo) Put(ctx context.Context, id domain.ClubID, c domain.Club) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = c.Clone()
	return nil
}

// Snapshot captures the current contents; calling restore puts them back.
func (r *Repo) Snapshot() (restore func()) {
	r.mu.RLock()
	saved := make(map[domain.ClubID]domain.Club, len(r.byID))
	for id, c := range r.byID {
		saved[id] = c.Clone()
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byID = saved
	}
}
