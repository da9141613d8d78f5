// Package config centralizes the ten recognized mixer tunables and
// their defaults, and the flag wiring main.go uses to override them.
package config

import (
	"flag"

	"voxmix/internal/source"
	"voxmix/internal/spatial"
)

// Config holds every recognized configuration key from the external
// interface table, with the spec's defaults.
type Config struct {
	SampleRate        int
	SamplesPerFrame   int
	RingFrames        int
	JitterMsecs       float64
	GapIntervalSamples int
	GapWindowIntervals int
	DistanceRatio      float64
	MaxOffAxisAtten    float64
	PhaseAmpRatioAt90  float64
	PhaseDelayAt90     float64
}

// Default returns the spec-defined defaults.
func Default() Config {
	return Config{
		SampleRate:         22050,
		SamplesPerFrame:    256,
		RingFrames:         10,
		JitterMsecs:        12,
		GapIntervalSamples: 50,
		GapWindowIntervals: 32,
		DistanceRatio:      10,
		MaxOffAxisAtten:    0.2,
		PhaseAmpRatioAt90:  0.5,
		PhaseDelayAt90:     20,
	}
}

// RegisterFlags binds every recognized key to a flag on fs, seeded
// with Default()'s values, and returns the Config flag.Parse will
// populate.
func RegisterFlags(fs *flag.FlagSet) *Config {
	d := Default()
	c := &Config{}
	fs.IntVar(&c.SampleRate, "sample-rate", d.SampleRate, "nominal sample rate (Hz)")
	fs.IntVar(&c.SamplesPerFrame, "samples-per-frame", d.SamplesPerFrame, "frame size per channel")
	fs.IntVar(&c.RingFrames, "ring-frames", d.RingFrames, "ring-buffer size in frames")
	fs.Float64Var(&c.JitterMsecs, "jitter-msecs", d.JitterMsecs, "startup jitter cushion in milliseconds")
	fs.IntVar(&c.GapIntervalSamples, "gap-interval-samples", d.GapIntervalSamples, "gaps per interframe-gap interval")
	fs.IntVar(&c.GapWindowIntervals, "gap-window-intervals", d.GapWindowIntervals, "intervals per gap-tracker window")
	fs.Float64Var(&c.DistanceRatio, "distance-ratio", d.DistanceRatio, "distance attenuation scale")
	fs.Float64Var(&c.MaxOffAxisAtten, "max-off-axis-atten", d.MaxOffAxisAtten, "floor of the off-axis attenuation coefficient")
	fs.Float64Var(&c.PhaseAmpRatioAt90, "phase-amp-ratio-at-90", d.PhaseAmpRatioAt90, "weak-ear amplitude ratio at perpendicular bearing")
	fs.Float64Var(&c.PhaseDelayAt90, "phase-delay-at-90", d.PhaseDelayAt90, "weak-ear delay, in samples, at perpendicular bearing")
	return c
}

// JitterSamples converts JitterMsecs to a sample count at SampleRate.
func (c Config) JitterSamples() int {
	return int(c.JitterMsecs * float64(c.SampleRate) / 1000)
}

// SourceParams returns the ring/gap-tracker sizing every new source is
// constructed with.
func (c Config) SourceParams() source.Params {
	return source.Params{
		SamplesPerFrame: c.SamplesPerFrame,
		RingFrames:      c.RingFrames,
		GapIntervalSize: c.GapIntervalSamples,
		GapWindowSize:   c.GapWindowIntervals,
	}
}

// SpatialConfig returns the spatialization constants for internal/spatial.
func (c Config) SpatialConfig() spatial.Config {
	return spatial.Config{
		DistanceRatio:     c.DistanceRatio,
		MaxOffAxisAtten:   c.MaxOffAxisAtten,
		PhaseAmpRatioAt90: c.PhaseAmpRatioAt90,
		PhaseDelayAt90:    c.PhaseDelayAt90,
	}
}
