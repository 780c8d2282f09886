package clock

import (
	"time"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

// Clock supplies wall time. Readings are non-decreasing within one operation.
type Clock interface {
	Now() time.Time
}

// Moment reads c as a registry Moment.
func Moment(c Clock) domain.Moment {
	return domain.MomentFromTime(c.Now())
}
