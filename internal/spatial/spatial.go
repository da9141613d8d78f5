// Package spatial computes the 3D spatialization parameters applied
// to each source before it is mixed into a listener's stereo frame:
// distance attenuation, absolute/relative bearing, off-axis
// attenuation, and inter-aural delay/amplitude.
package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Config holds the tunable spatialization constants from the
// recognized configuration table.
type Config struct {
	DistanceRatio     float64 // R
	MaxOffAxisAtten   float64 // floor of the off-axis coefficient
	PhaseAmpRatioAt90 float64 // weak-ear ratio at perpendicular
	PhaseDelayAt90    float64 // weak-ear delay in samples at perpendicular
}

// DefaultConfig returns the spec-defined defaults.
func DefaultConfig() Config {
	return Config{
		DistanceRatio:     10,
		MaxOffAxisAtten:   0.2,
		PhaseAmpRatioAt90: 0.5,
		PhaseDelayAt90:    20,
	}
}

// Params are the fully-resolved per-source mixing parameters for one
// listener/source pair in one frame.
type Params struct {
	Attenuation float64 // composite A
	Delay       int     // samples
	WeakRatio   float64
	GoodIsRight bool // true iff the near-ear/"good" channel is right
}

// Identity returns the parameters used when a listener hears itself
// (loopback): full attenuation, zero delay, zero bearing.
func Identity() Params {
	return Params{Attenuation: 1, Delay: 0, WeakRatio: 1, GoodIsRight: false}
}

// DistanceCoeff returns c_d for separation distance d, given ratio R.
// It is 1 at d=0 and monotonically non-increasing for d>0.
func DistanceCoeff(d, distanceRatio float64) float64 {
	if d <= 0 {
		return 1
	}
	exp := log3(distanceRatio*d) - 1
	cd := math.Pow(0.5, exp)
	if cd > 1 {
		cd = 1
	}
	return cd
}

func log3(x float64) float64 {
	return math.Log(x) / math.Log(3)
}

// AbsoluteBearing computes the absolute bearing in degrees from
// listener to source in the horizontal (x,z) plane, using the
// quadrant-sign table from the mixing contract.
func AbsoluteBearing(listener, src r3.Vector) float64 {
	dx := src.X - listener.X
	dz := src.Z - listener.Z
	theta := math.Atan2(math.Abs(dz), math.Abs(dx)) * 180 / math.Pi

	// Ties (dx=0 and/or dz=0) resolve into the "non-negative" branch of
	// each axis, so co-located listener/source lands on row one.
	switch {
	case dx >= 0 && dz >= 0:
		return -90 + theta
	case dx >= 0 && dz < 0:
		return -90 - theta
	case dx < 0 && dz >= 0:
		return 90 - theta
	default:
		return 90 + theta
	}
}

// Wrap maps an angle in degrees into (-180, 180].
func Wrap(deg float64) float64 {
	angle := math.Mod(deg, 360)
	if angle <= -180 {
		angle += 360
	}
	if angle > 180 {
		angle -= 360
	}
	return angle
}

// OffAxisCoeff returns c_o for a relative bearing beta (degrees),
// linearly scaling from cfg.MaxOffAxisAtten up to
// cfg.MaxOffAxisAtten+0.4 as |beta| grows to 90 and beyond.
func OffAxisCoeff(beta float64, cfg Config) float64 {
	b := math.Abs(beta)
	if b > 90 {
		b = 90
	}
	return cfg.MaxOffAxisAtten + 0.4*(b/90)
}

// Distance returns the separation between a listener and a source.
func Distance(listenerPos, sourcePos r3.Vector) float64 {
	return listenerPos.Sub(sourcePos).Norm()
}

// Compute resolves the full spatialization parameters for a source
// relative to a listener. sourceAttenRatio is the source's own
// per-source attenuation ratio in [0,1].
func Compute(listenerPos r3.Vector, listenerBearing float64, sourcePos r3.Vector, sourceBearing float64, sourceAttenRatio float64, cfg Config) Params {
	cd := DistanceCoeff(Distance(listenerPos, sourcePos), cfg.DistanceRatio)
	return ComputeWithDistanceCoeff(listenerPos, listenerBearing, sourcePos, sourceBearing, sourceAttenRatio, cd, cfg)
}

// ComputeWithDistanceCoeff is Compute with an already-resolved distance
// coefficient, letting callers memoize c_d across the unordered
// listener/source pair within a frame.
func ComputeWithDistanceCoeff(listenerPos r3.Vector, listenerBearing float64, sourcePos r3.Vector, sourceBearing float64, sourceAttenRatio float64, cd float64, cfg Config) Params {
	abs := AbsoluteBearing(listenerPos, sourcePos)
	alpha := Wrap(abs - listenerBearing)
	beta := Wrap(abs - sourceBearing)

	co := OffAxisCoeff(beta, cfg)
	a := cd * sourceAttenRatio * co

	alphaRad := alpha * math.Pi / 180
	k := math.Abs(math.Sin(alphaRad))
	delay := int(math.Round(cfg.PhaseDelayAt90 * k))
	weakRatio := 1 - cfg.PhaseAmpRatioAt90*k

	return Params{
		Attenuation: a,
		Delay:       delay,
		WeakRatio:   weakRatio,
		GoodIsRight: alpha > 0,
	}
}
