package idempotency

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

// DefaultTTL bounds how long a stored response can be replayed.
const DefaultTTL = 24 * time.Hour

// Key is the caller-provided Idempotency-Key header value.
type Key string

// Fingerprint identifies one logical request. A record stored under a fingerprint
// with an empty BodyHash holds the body hash first seen for key, caller and route,
// which is how a reused key with a different payload is detected.
type Fingerprint struct {
	Key      Key
	Subject  domain.AccountID
	Method   string
	Route    string // request path, e.g. "/clubs/5/payments"
	BodyHash string
}

// Record is a stored response.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Expired reports whether r is older than ttl at now. A non-positive ttl never expires.
func (r Record) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && !now.Before(r.CreatedAt.Add(ttl))
}

// Store keeps responses for replay on retries. Get must not return expired records.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}
