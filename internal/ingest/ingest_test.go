package ingest

import (
	"encoding/binary"
	"testing"
	"time"

	"voxmix/internal/source"
)

func testParams() source.Params {
	return source.Params{SamplesPerFrame: 256, RingFrames: 10, GapIntervalSize: 50, GapWindowSize: 32}
}

func le16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestDispatchCreatesAndWritesAvatarSource(t *testing.T) {
	reg := source.NewRegistry()
	ig := New(testParams())

	pkt := Packet{Kind: source.Avatar, Identity: "alice", PCM: le16(1, 2, 3, 4)}
	s, err := ig.Dispatch(reg, time.Now(), pkt)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.Buffer.Available() != 4 {
		t.Errorf("Available: got %d, want 4", s.Buffer.Available())
	}
	if _, ok := reg.ByIdentity("alice"); !ok {
		t.Error("expected source registered under identity")
	}
}

func TestDispatchTruncatesOddTrailingByte(t *testing.T) {
	reg := source.NewRegistry()
	ig := New(testParams())

	pcm := le16(7, 8)
	pcm = append(pcm, 0xFF) // one extra malformed byte

	pkt := Packet{Kind: source.Avatar, Identity: "bob", PCM: pcm}
	s, err := ig.Dispatch(reg, time.Now(), pkt)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.Buffer.Available() != 2 {
		t.Errorf("Available: got %d, want 2 (odd byte dropped)", s.Buffer.Available())
	}
}

func TestDispatchRejectsEmptyIdentity(t *testing.T) {
	reg := source.NewRegistry()
	ig := New(testParams())
	if _, err := ig.Dispatch(reg, time.Now(), Packet{Kind: source.Avatar, PCM: le16(1)}); err == nil {
		t.Error("expected an error for empty identity")
	}
}

func TestDispatchAttachesInjectorStreamID(t *testing.T) {
	reg := source.NewRegistry()
	ig := New(testParams())

	pkt := Packet{Kind: source.Injector, Identity: "tone-bot", StreamID: "TONE", PCM: le16(1, 2)}
	s, err := ig.Dispatch(reg, time.Now(), pkt)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	found, ok := reg.ByStreamID("TONE")
	if !ok || found != s {
		t.Error("expected injector to be looked-up-able by stream-id")
	}
}

func TestDispatchStreamIDMismatchCreatesNewInjector(t *testing.T) {
	reg := source.NewRegistry()
	ig := New(testParams())

	first, err := ig.Dispatch(reg, time.Now(), Packet{Kind: source.Injector, Identity: "bot", StreamID: "A", PCM: le16(1)})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	second, err := ig.Dispatch(reg, time.Now(), Packet{Kind: source.Injector, Identity: "bot", StreamID: "B", PCM: le16(1)})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if first == second {
		t.Error("a stream-id mismatch should register a distinct injector source")
	}
	if _, ok := reg.ByStreamID("A"); !ok {
		t.Error("original stream-id mapping should remain")
	}
	if _, ok := reg.ByStreamID("B"); !ok {
		t.Error("new stream-id mapping should exist")
	}
}

func TestDispatchNotifiesGapTracker(t *testing.T) {
	reg := source.NewRegistry()
	// S=1 so a single gap completes an interval and yields a window max.
	ig := New(source.Params{SamplesPerFrame: 256, RingFrames: 10, GapIntervalSize: 1, GapWindowSize: 32})
	t0 := time.Now()

	s, _ := ig.Dispatch(reg, t0, Packet{Kind: source.Avatar, Identity: "alice", PCM: le16(1)})
	_, _ = ig.Dispatch(reg, t0.Add(5*time.Millisecond), Packet{Kind: source.Avatar, Identity: "alice", PCM: le16(1)})

	// The first dispatch primes the tracker; the second records a 5ms gap
	// on the same tracker instance.
	if s.Gap == nil {
		t.Fatal("expected a gap tracker to be attached")
	}
	if got := s.Gap.WindowMax(); got != 5*time.Millisecond {
		t.Errorf("WindowMax: got %v, want 5ms", got)
	}
}
