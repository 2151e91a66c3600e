package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestVirtualClock_Advance(t *testing.T) {
	vc := NewVirtualClock(epoch)
	vc.Advance(50 * time.Millisecond)

	if got := vc.Since(epoch); got != 50*time.Millisecond {
		t.Errorf("Since() = %v, want 50ms", got)
	}
	if got := vc.Now(); !got.Equal(epoch.Add(50 * time.Millisecond)) {
		t.Errorf("Now() = %v", got)
	}
}

func TestVirtualClock_AdvanceNegativePanics(t *testing.T) {
	vc := NewVirtualClock(epoch)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on negative advance")
		}
	}()
	vc.Advance(-time.Second)
}
