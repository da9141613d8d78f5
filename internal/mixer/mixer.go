// Package mixer implements the per-listener spatialization and
// saturating mix (C7): every frame, it zeroes a stereo scratch per
// avatar listener, mixes in every eligible source at its resolved
// spatial parameters, emits the frame, and advances read cursors.
package mixer

import (
	"math"
	"sort"

	"voxmix/internal/ring"
	"voxmix/internal/source"
	"voxmix/internal/spatial"
)

// Sink receives one finished stereo frame per listener per tick.
type Sink interface {
	Emit(listenerIdentity string, stereo []int16)
}

// Mixer owns nothing across frames beyond its config; all mutable
// state lives in the registry and its sources.
type Mixer struct {
	cfg             spatial.Config
	samplesPerFrame int
}

// New constructs a Mixer for the given spatialization config and
// frame size.
func New(cfg spatial.Config, samplesPerFrame int) *Mixer {
	return &Mixer{cfg: cfg, samplesPerFrame: samplesPerFrame}
}

// MixFrame produces and emits one frame for every avatar listener in
// reg, then advances the read cursor of every source that
// contributed. Eligibility (ShouldMix) must already have been decided
// for this frame by the caller.
func (m *Mixer) MixFrame(reg *source.Registry, sink Sink) {
	all := reg.All()

	distCache := make(map[string]float64)

	for _, listener := range all {
		if listener.Kind != source.Avatar {
			continue
		}

		scratch := make([]int16, 2*m.samplesPerFrame)

		for _, src := range all {
			if !src.ShouldMix {
				continue
			}
			if src == listener && !listener.Loopback {
				continue
			}

			var params spatial.Params
			if src == listener {
				params = spatial.Identity()
			} else {
				cd := pairDistanceCoeff(distCache, listener, src, m.cfg)
				params = spatial.ComputeWithDistanceCoeff(
					listener.Pose.Position, listener.Pose.BearingDeg,
					src.Pose.Position, src.Pose.BearingDeg,
					src.AttenuationRatio, cd, m.cfg,
				)
			}

			mixSourceInto(scratch, src.Buffer, params, m.samplesPerFrame)
		}

		sink.Emit(listener.Identity, scratch)
	}

	for _, s := range all {
		if s.ShouldMix {
			s.Buffer.ShiftRead(m.samplesPerFrame)
		}
		s.ShouldMix = false
	}
}

func pairDistanceCoeff(cache map[string]float64, a, b *source.Source, cfg spatial.Config) float64 {
	key := pairKey(a.Identity, b.Identity)
	if v, ok := cache[key]; ok {
		return v
	}
	d := spatial.Distance(a.Pose.Position, b.Pose.Position)
	cd := spatial.DistanceCoeff(d, cfg.DistanceRatio)
	cache[key] = cd
	return cd
}

func pairKey(a, b string) string {
	if a <= b {
		return a + "\x00" + b
	}
	return b + "\x00" + a
}

// mixSourceInto mixes F frames from buf into scratch (2F interleaved
// L,R int16) per the per-sample mixing algorithm: the near-ear "good"
// channel gets the undelayed signal, the far-ear "delayed" channel
// gets a weakened, delayed copy, including pre-roll look-back from
// the previous frame's tail.
func mixSourceInto(scratch []int16, buf *ring.Buffer, p spatial.Params, samplesPerFrame int) {
	delay := p.Delay

	for i := 0; i < samplesPerFrame; i++ {
		if i < delay {
			lookback := float64(buf.Index(i-delay)) * p.Attenuation * p.WeakRatio
			addSample(scratch, i, !p.GoodIsRight, round16(lookback))
		}

		cur := float64(buf.Index(i)) * p.Attenuation
		addSample(scratch, i, p.GoodIsRight, round16(cur))

		if i+delay < samplesPerFrame {
			addSample(scratch, i+delay, !p.GoodIsRight, round16(cur*p.WeakRatio))
		}
	}
}

func round16(v float64) int16 {
	r := math.Round(v)
	if r > 32767 {
		return 32767
	}
	if r < -32768 {
		return -32768
	}
	return int16(r)
}

func addSample(scratch []int16, frameIdx int, right bool, v int16) {
	idx := frameIdx * 2
	if right {
		idx++
	}
	scratch[idx] = ring.SaturatingAdd(scratch[idx], v)
}

// StartupIdentities returns the registered avatar identities, sorted.
func StartupIdentities(reg *source.Registry) []string {
	all := reg.All()
	out := make([]string, 0, len(all))
	for _, s := range all {
		if s.Kind == source.Avatar {
			out = append(out, s.Identity)
		}
	}
	sort.Strings(out)
	return out
}
