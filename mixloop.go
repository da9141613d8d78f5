package main

import (
	"context"
	"sync/atomic"
	"time"

	"voxmix/internal/cadence"
	"voxmix/internal/config"
	"voxmix/internal/eligibility"
	"voxmix/internal/httpapi"
	"voxmix/internal/ingest"
	"voxmix/internal/mixer"
	"voxmix/internal/source"
)

// snapshotData is the immutable copy of registry state atomicSnapshot
// publishes each tick for the HTTP API to read from another goroutine.
type snapshotData struct {
	sources   []httpapi.SourceStatus
	listeners int
}

// atomicSnapshot lets the mixer goroutine publish a registry snapshot
// that internal/httpapi's handlers can read without ever touching the
// live registry themselves.
type atomicSnapshot struct {
	v atomic.Value
}

func (s *atomicSnapshot) store(sources []httpapi.SourceStatus, listeners int) {
	s.v.Store(snapshotData{sources: sources, listeners: listeners})
}

// Sources implements httpapi.Snapshot.
func (s *atomicSnapshot) Sources() []httpapi.SourceStatus {
	d, _ := s.v.Load().(snapshotData)
	return d.sources
}

// ListenerCount implements httpapi.Snapshot.
func (s *atomicSnapshot) ListenerCount() int {
	d, _ := s.v.Load().(snapshotData)
	return d.listeners
}

// runMixLoop is the single mixer-thread goroutine (spec.md §5): it
// owns the registry, every source's ring buffer, and the peer
// registry, and is the only goroutine that ever mutates any of them.
// Session goroutines only ever reach in by pushing sessionEvents onto
// events, which is drained here between frames, never concurrently
// with mixing.
func runMixLoop(ctx context.Context, reg *source.Registry, ing *ingest.Ingest, peers *peerRegistry, events chan sessionEvent, cfg config.Config, snap *atomicSnapshot, frames *atomic.Int64) {
	mix := mixer.New(cfg.SpatialConfig(), cfg.SamplesPerFrame)
	cad := cadence.New(cfg.SampleRate, cfg.SamplesPerFrame)
	cad.Start(time.Now())

	jitterSamples := cfg.JitterSamples()

	for ctx.Err() == nil {
		drainEvents(events, reg, ing, peers, cfg.SourceParams())

		all := reg.All()
		classifications := make(map[string]eligibility.Classification, len(all))
		listeners := 0
		for _, s := range all {
			classifications[s.Identity] = eligibility.Evaluate(s, cfg.SamplesPerFrame, jitterSamples)
			if s.Kind == source.Avatar {
				listeners++
			}
		}

		mix.MixFrame(reg, peers)
		frames.Add(1)

		if snap != nil {
			rs := httpapi.RegistrySnapshot{Registry: reg, Classifications: classifications, Listeners: listeners}
			snap.store(rs.Sources(), rs.ListenerCount())
		}

		cad.WaitNext(time.Now())
	}
}
