// Package eligibility implements the per-frame, per-source gate (C6)
// that decides whether a source contributes to this frame's mix.
package eligibility

import (
	"log/slog"

	"voxmix/internal/source"
)

// Classification is the outcome of evaluating one source for one frame.
type Classification int

const (
	Skip Classification = iota
	HoldBack
	Starved
	Eligible
)

func (c Classification) String() string {
	switch c {
	case Skip:
		return "skip"
	case HoldBack:
		return "hold_back"
	case Starved:
		return "starved"
	case Eligible:
		return "eligible"
	default:
		return "unknown"
	}
}

// Evaluate classifies s for this frame given the frame size F and the
// jitter cushion J (both in samples), updates s.Buffer's started flag
// and s.ShouldMix accordingly, and returns the classification.
func Evaluate(s *source.Source, samplesPerFrame, jitterSamples int) Classification {
	buf := s.Buffer

	if !buf.HasWritten() {
		s.ShouldMix = false
		return Skip
	}

	avail := buf.Available()

	if !buf.Started() && avail <= samplesPerFrame+jitterSamples {
		s.ShouldMix = false
		return HoldBack
	}

	if avail < samplesPerFrame {
		buf.SetStarted(false)
		s.ShouldMix = false
		slog.Debug("source starved", "identity", s.Identity, "available", avail, "frame", samplesPerFrame)
		return Starved
	}

	buf.SetStarted(true)
	s.ShouldMix = true
	return Eligible
}
