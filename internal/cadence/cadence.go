// Package cadence paces frame emission at a fixed interval anchored to
// a monotonic start time, regardless of wall-clock drift (C8).
package cadence

import (
	"log/slog"
	"time"
)

// Cadence schedules frame n at start + n*delta and never compresses
// frames to catch up after a slip.
type Cadence struct {
	delta   time.Duration
	start   time.Time
	frameN  int64
	started bool
	sleep   func(time.Duration)
}

// New constructs a Cadence for the given sample rate and frame size.
func New(sampleRate, samplesPerFrame int) *Cadence {
	delta := time.Duration(samplesPerFrame) * time.Second / time.Duration(sampleRate)
	return &Cadence{delta: delta, sleep: time.Sleep}
}

// Delta returns the per-frame interval.
func (c *Cadence) Delta() time.Duration { return c.delta }

// Start anchors the schedule at now. Must be called once before the
// first WaitNext.
func (c *Cadence) Start(now time.Time) {
	c.start = now
	c.frameN = 0
	c.started = true
}

// WaitNext blocks (using a monotonic clock) until the scheduled time
// of the next frame, or returns immediately with slipped=true if that
// time has already passed. It never sleeps to "catch up" — each frame
// still represents exactly one frame interval of audio time.
func (c *Cadence) WaitNext(now time.Time) (slipped bool) {
	if !c.started {
		c.Start(now)
	}
	c.frameN++
	target := c.start.Add(c.delta * time.Duration(c.frameN))

	if !now.Before(target) {
		slog.Debug("cadence slipped", "frame", c.frameN, "behind", now.Sub(target))
		return true
	}
	c.sleep(target.Sub(now))
	return false
}
