// Package source holds per-source mixing state (C3) and the registry
// that looks sources up by identity or injector stream-id (C4).
package source

import (
	"github.com/golang/geo/r3"

	"voxmix/internal/gaptracker"
	"voxmix/internal/ring"
)

// Kind distinguishes avatar microphone sources from synthesized
// injector sources.
type Kind int

const (
	Avatar Kind = iota
	Injector
)

func (k Kind) String() string {
	if k == Injector {
		return "injector"
	}
	return "avatar"
}

// Params carries the ring-buffer sizing shared by every source.
type Params struct {
	SamplesPerFrame int
	RingFrames      int
	GapIntervalSize int
	GapWindowSize   int
}

// Pose is a source's position and facing in the horizontal plane.
type Pose struct {
	Position r3.Vector
	BearingDeg float64
}

// Source is one registered avatar or injector stream.
type Source struct {
	Identity string
	StreamID string // byte-compared tag for injector lookup; empty for avatars
	Kind     Kind

	Buffer *ring.Buffer
	Gap    *gaptracker.Tracker

	Pose             Pose
	AttenuationRatio float64 // in [0,1]
	Loopback         bool

	// Transient per-frame flags, reset each frame by the eligibility gate.
	ShouldMix bool
}

// New constructs a source with a fresh ring buffer and gap tracker.
// randomAccess selects the ring buffer's read mode.
func New(identity string, kind Kind, params Params, randomAccess bool) *Source {
	return &Source{
		Identity:         identity,
		Kind:             kind,
		Buffer:           ring.New(params.SamplesPerFrame, params.RingFrames, randomAccess),
		Gap:              gaptracker.New(params.GapIntervalSize, params.GapWindowSize),
		AttenuationRatio: 1,
	}
}
