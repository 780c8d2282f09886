package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres"
	"github.com/Overland-East-Bay/club-registry/internal/ports/out/idempotency"
)

var errNilPool = errors.New("nil postgres pool")

// Store keeps idempotency records in the idempotency_keys table. Subjects are
// namespaced by the token issuer so two identity providers cannot collide.
type Store struct {
	pool   *pgxpool.Pool
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithTTL overrides idempotency.DefaultTTL. Zero keeps records forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithNow overrides the wall clock used for expiry.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(pool *pgxpool.Pool, jwtIssuer string, opts ...Option) *Store {
	s := &Store{
		pool:   pool,
		issuer: jwtIssuer,
		ttl:    idempotency.DefaultTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errNilPool
	}
	var rec idempotency.Record
	err := postgres.Conn(ctx, s.pool).QueryRow(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE (idempotency_key, subject_iss, subject_sub, method, route, body_hash) = ($1, $2, $3, $4, $5, $6)
	`, s.keyArgs(fp)...).Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return idempotency.Record{}, false, nil
	case err != nil:
		return idempotency.Record{}, false, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.Expired(s.now(), s.ttl) {
		return idempotency.Record{}, false, nil
	}
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errNilPool
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	args := append(s.keyArgs(fp), rec.StatusCode, rec.ContentType, rec.Body, createdAt.UTC())
	_, err := postgres.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key, subject_iss, subject_sub, method, route, body_hash,
			status_code, content_type, body, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (idempotency_key, subject_iss, subject_sub, method, route, body_hash)
		DO UPDATE SET
			status_code = EXCLUDED.status_code,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at
	`, args...)
	return err
}

// DeleteExpired removes records past the TTL and reports how many were removed.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, errNilPool
	}
	if s.ttl <= 0 {
		return 0, nil
	}
	tag, err := postgres.Conn(ctx, s.pool).Exec(ctx,
		`DELETE FROM idempotency_keys WHERE created_at <= $1`, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) keyArgs(fp idempotency.Fingerprint) []any {
	return []any{string(fp.Key), s.issuer, string(fp.Subject), fp.Method, fp.Route, fp.BodyHash}
}
