// Package clock provides the production clockport.Clock.
package clock

import "time"

// SystemClock reads wall-clock time in UTC, truncated to the second registry moments use.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Second) }
