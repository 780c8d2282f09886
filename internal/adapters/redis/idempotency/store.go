package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Overland-East-Bay/club-registry/internal/ports/out/idempotency"
)

const (
	keyPrefix = "club-registry:idem:"

	DefaultTTL = idempotency.DefaultTTL
)

// Store is a Redis implementation of idempotency.Store. Records expire after the
// configured TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type record struct {
	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.client == nil {
		return idempotency.Record{}, false, errors.New("nil redis client")
	}
	raw, err := s.client.Get(ctx, Key(fp)).Bytes()
	if errors.Is(err, redis.Nil) {
		return idempotency.Record{}, false, nil
	}
	if err != nil {
		return idempotency.Record{}, false, err
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return idempotency.Record{}, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return idempotency.Record{
		StatusCode:  r.StatusCode,
		ContentType: r.ContentType,
		Body:        r.Body,
		CreatedAt:   r.CreatedAt.UTC(),
	}, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.client == nil {
		return errors.New("nil redis client")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	raw, err := json.Marshal(record{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		CreatedAt:   createdAt.UTC(),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, Key(fp), raw, s.ttl).Err()
}

// Key derives the Redis key for fp. Fields are length-prefixed before hashing so
// no two fingerprints share a key.
func Key(fp idempotency.Fingerprint) string {
	h := sha256.New()
	for _, part := range []string{string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash} {
		_, _ = fmt.Fprintf(h, "%d:%s;", len(part), part)
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
