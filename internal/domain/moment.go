package domain

import (
	"errors"
	"math/bits"
	"time"
)

// ErrMomentOverflow is returned when advancing a Moment would wrap around.
var ErrMomentOverflow = errors.New("moment overflow")

// Moment is a logical timestamp in whole seconds.
type Moment uint64

// MomentFromTime converts wall-clock time to a Moment. Times before the Unix epoch clamp to 0.
func MomentFromTime(t time.Time) Moment {
	s := t.Unix()
	if s < 0 {
		return 0
	}
	return Moment(s)
}

// Add returns m advanced by seconds.
func (m Moment) Add(seconds uint64) (Moment, error) {
	sum, carry := bits.Add64(uint64(m), seconds, 0)
	if carry != 0 {
		return m, ErrMomentOverflow
	}
	return Moment(sum), nil
}

// Before reports whether m is strictly earlier than o.
func (m Moment) Before(o Moment) bool { return m < o }

// Time converts m back to UTC wall-clock time.
func (m Moment) Time() time.Time {
	if m > Moment(1<<63-1) {
		return time.Unix(1<<63-1, 0).UTC()
	}
	return time.Unix(int64(m), 0).UTC()
}
