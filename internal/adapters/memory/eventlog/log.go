package eventlog

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

// Log is an in-memory, append-only implementation of eventlog.Publisher.
// It is safe for concurrent use.
type Log struct {
	mu     sync.RWMutex
	events []domain.Event
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Publish(ctx context.Context, e domain.Event) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

// Events returns every published event in publish order.
func (l *Log) Events() []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.Event(nil), l.events...)
}

// Last returns the most recently published event.
func (l *Log) Last() (domain.Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return domain.Event{}, false
	}
	return l.events[len(l.events)-1], true
}
