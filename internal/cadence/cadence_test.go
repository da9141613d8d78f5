package cadence

import (
	"testing"
	"time"
)

func TestDeltaMatchesFrameDuration(t *testing.T) {
	c := New(22050, 256)
	want := time.Duration(256) * time.Second / 22050
	if c.Delta() != want {
		t.Errorf("Delta: got %v, want %v", c.Delta(), want)
	}
}

func TestWaitNextSleepsForScheduledInterval(t *testing.T) {
	c := New(1000, 10) // delta = 10ms
	var slept time.Duration
	c.sleep = func(d time.Duration) { slept = d }

	t0 := time.Now()
	c.Start(t0)
	slipped := c.WaitNext(t0)

	if slipped {
		t.Error("did not expect a slip on the first frame")
	}
	if slept != c.Delta() {
		t.Errorf("slept: got %v, want %v", slept, c.Delta())
	}
}

func TestWaitNextReportsSlipWithoutCompressingFrames(t *testing.T) {
	c := New(1000, 10) // delta = 10ms
	var slept time.Duration
	c.sleep = func(d time.Duration) { slept = d }

	t0 := time.Now()
	c.Start(t0)

	// Pretend wall time has already passed the scheduled time for frame 1.
	late := t0.Add(50 * time.Millisecond)
	if slipped := c.WaitNext(late); !slipped {
		t.Error("expected a slip when already past the scheduled time")
	}
	if slept != 0 {
		t.Errorf("a slipped frame must not sleep: got %v", slept)
	}
}

func TestWaitNextSchedulesEachFrameAtFixedOffsetFromStart(t *testing.T) {
	c := New(1000, 10) // delta = 10ms
	var lastSleep time.Duration
	c.sleep = func(d time.Duration) { lastSleep = d }

	t0 := time.Now()
	c.Start(t0)
	c.WaitNext(t0)                         // schedules frame 1 at t0+10ms, sleeps 10ms
	c.WaitNext(t0.Add(10 * time.Millisecond)) // frame 2 scheduled at t0+20ms

	if lastSleep != 10*time.Millisecond {
		t.Errorf("frame 2 sleep: got %v, want 10ms", lastSleep)
	}
}
