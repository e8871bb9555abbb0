package timeutil

import (
	"testing"
	"time"
)

var _ Clock = RealClock{}
var _ Clock = (*MockClock)(nil)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	now := c.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	c := RealClock{}
	start := c.Now()
	c.Sleep(time.Millisecond)
	if d := c.Since(start); d < time.Millisecond {
		t.Errorf("Since() = %v after sleeping 1ms", d)
	}
}

func TestMockClock_NowSet(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	later := start.Add(48 * time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("after Set, Now() = %v, want %v", c.Now(), later)
	}
}

func TestMockClock_AdvanceSince(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}
}

func TestMockClock_Sleep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	c.Sleep(10 * time.Millisecond)
	c.Sleep(20 * time.Millisecond)

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 10*time.Millisecond || sleeps[1] != 20*time.Millisecond {
		t.Errorf("Sleeps() = %v", sleeps)
	}
	if got := c.Since(start); got != 30*time.Millisecond {
		t.Errorf("clock advanced %v, want 30ms", got)
	}

	// The returned slice is a copy.
	sleeps[0] = 0
	if c.Sleeps()[0] != 10*time.Millisecond {
		t.Error("Sleeps() exposed internal state")
	}
}
