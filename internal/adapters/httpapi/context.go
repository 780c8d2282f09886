package httpapi

import (
	"context"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

type subjectKey struct{}

// WithSubject records the authenticated caller. Blank subjects are not recorded.
func WithSubject(ctx context.Context, subject string) context.Context {
	id := domain.NormalizeAccountID(subject)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, subjectKey{}, id)
}

// SubjectFromContext returns the caller's account, if authenticated.
func SubjectFromContext(ctx context.Context) (domain.AccountID, bool) {
	id, ok := ctx.Value(subjectKey{}).(domain.AccountID)
	return id, ok
}
