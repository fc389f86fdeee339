package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresDueTimers(t *testing.T) {
	start := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	var fired []string
	clk.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	clk.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	clk.AfterFunc(time.Minute, func() { fired = append(fired, "later") })

	clk.Advance(5 * time.Second)

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Errorf("fired = %v, want [a b] in deadline order", fired)
	}
	if got := clk.Pending(); got != 1 {
		t.Errorf("Pending = %d, want 1", got)
	}
	if want := start.Add(5 * time.Second); !clk.Now().Equal(want) {
		t.Errorf("Now = %v, want %v", clk.Now(), want)
	}
}

func TestFakeStopPreventsFiring(t *testing.T) {
	clk := NewFake(time.Now())

	var fired bool
	timer := clk.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop = false on a pending timer")
	}
	if timer.Stop() {
		t.Error("Stop = true on an already-stopped timer")
	}

	clk.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFakeCallbackMayScheduleAgain(t *testing.T) {
	clk := NewFake(time.Now())

	var count int
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			clk.AfterFunc(time.Second, tick)
		}
	}
	clk.AfterFunc(time.Second, tick)

	// One large advance drains the whole chain: each reschedule is
	// already due.
	clk.Advance(10 * time.Second)

	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
