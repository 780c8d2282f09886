package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

// Outbox appends events to the club_events table.
type Outbox struct {
	pool *pgxpool.Pool
}

func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

func (o *Outbox) Publish(ctx context.Context, e domain.Event) error {
	if o.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}
	_, err = postgres.Conn(ctx, o.pool).Exec(ctx, `
		INSERT INTO club_events (event_id, kind, club_id, member, new_owner, at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric)
	`,
		id,
		string(e.Kind),
		int64(e.ClubID),
		string(e.Member),
		string(e.NewOwner),
		strconv.FormatUint(uint64(e.At), 10),
	)
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
		// Republishing an event is a no-op.
		return nil
	}
	return err
}

// ListSince returns up to limit events with a sequence number above after, oldest
// first, along with the sequence of the last one returned.
func (o *Outbox) ListSince(ctx context.Context, after int64, limit int) ([]domain.Event, int64, error) {
	if o.pool == nil {
		return nil, after, errors.New("nil postgres pool")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := o.pool.Query(ctx, `
		SELECT seq, event_id, kind, club_id, member, new_owner, at::text
		FROM club_events
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, after, err
	}
	defer rows.Close()

	var out []domain.Event
	last := after
	for rows.Next() {
		var (
			seq      int64
			id       uuid.UUID
			kind     string
			clubID   int64
			member   string
			newOwner string
			at       string
		)
		if err := rows.Scan(&seq, &id, &kind, &clubID, &member, &newOwner, &at); err != nil {
			return nil, after, err
		}
		m, err := strconv.ParseUint(at, 10, 64)
		if err != nil {
			return nil, after, fmt.Errorf("event %s: bad at %q: %w", id, at, err)
		}
		out = append(out, domain.Event{
			ID:       id.String(),
			Kind:     domain.EventKind(kind),
			ClubID:   domain.ClubID(clubID),
			Member:   domain.AccountID(member),
			NewOwner: domain.AccountID(newOwner),
			At:       domain.Moment(m),
		})
		last = seq
	}
	if err := rows.Err(); err != nil {
		return nil, after, err
	}
	return out, last, nil
}
