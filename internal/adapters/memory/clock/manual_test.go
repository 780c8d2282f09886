package clock

import (
	"testing"
	"time"
)

func TestManualClock_AdvanceNeverGoesBack(t *testing.T) {
	t.Parallel()

	c := NewManualClock(time.Unix(100, 0).UTC())
	c.Advance(-time.Hour)
	if got := c.Now(); !got.Equal(time.Unix(100, 0)) {
		t.Fatalf("Now()=%v after negative advance", got)
	}
	c.Advance(5 * time.Second)
	if got := c.Now(); !got.Equal(time.Unix(105, 0)) {
		t.Fatalf("Now()=%v, want 105s", got)
	}
}
