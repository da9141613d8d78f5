package source

import "testing"

func testParams() Params {
	return Params{SamplesPerFrame: 256, RingFrames: 10, GapIntervalSize: 50, GapWindowSize: 32}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.GetOrCreate("alice", Avatar, testParams(), false)
	b := r.GetOrCreate("alice", Avatar, testParams(), false)
	if a != b {
		t.Fatal("expected the same *Source for repeated identity")
	}
	if r.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", r.Len())
	}
}

func TestByStreamIDLookup(t *testing.T) {
	r := NewRegistry()
	s := r.GetOrCreate("tone-1", Injector, testParams(), true)
	r.AttachStreamID("TONE", s)

	found, ok := r.ByStreamID("TONE")
	if !ok || found != s {
		t.Fatal("expected stream-id lookup to find the injector source")
	}
	if _, ok := r.ByStreamID("NOPE"); ok {
		t.Error("unknown stream-id should not resolve")
	}
}

func TestRemoveClearsBothIndexes(t *testing.T) {
	r := NewRegistry()
	s := r.GetOrCreate("tone-1", Injector, testParams(), true)
	r.AttachStreamID("TONE", s)

	r.Remove("tone-1")
	if _, ok := r.ByIdentity("tone-1"); ok {
		t.Error("expected identity to be removed")
	}
	if _, ok := r.ByStreamID("TONE"); ok {
		t.Error("expected stream-id mapping to be removed")
	}
	if r.Len() != 0 {
		t.Errorf("Len: got %d, want 0", r.Len())
	}
}

func TestAllReturnsEveryRegisteredSource(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("a", Avatar, testParams(), false)
	r.GetOrCreate("b", Avatar, testParams(), false)
	if n := len(r.All()); n != 2 {
		t.Fatalf("All: got %d sources, want 2", n)
	}
}
