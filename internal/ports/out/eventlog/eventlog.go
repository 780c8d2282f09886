package eventlog

import (
	"context"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

// Publisher appends events to the notification log.
//
// Publishing is fire-and-forget from the registry's point of view: a failed publish
// never undoes the state transition that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e domain.Event) error
}
