package spatial

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestDistanceCoeffIsOneAtOrigin(t *testing.T) {
	if c := DistanceCoeff(0, 10); c != 1 {
		t.Errorf("DistanceCoeff(0): got %v, want 1", c)
	}
}

func TestDistanceCoeffAtReferenceDistance(t *testing.T) {
	// log3(R*d)=1 at R*d=3, i.e. d=0.3 for R=10.
	c := DistanceCoeff(0.3, 10)
	if !almostEqual(c, 1, 1e-9) {
		t.Errorf("DistanceCoeff(0.3): got %v, want 1", c)
	}
}

func TestDistanceCoeffMonotonicNonIncreasing(t *testing.T) {
	prev := DistanceCoeff(0.3, 10)
	for _, d := range []float64{0.5, 1, 2, 5, 10, 50} {
		c := DistanceCoeff(d, 10)
		if c > prev+1e-12 {
			t.Errorf("DistanceCoeff not monotonic: d=%v got %v > prev %v", d, c, prev)
		}
		prev = c
	}
}

func TestWrapStaysInHalfOpenRange(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		180:  180,
		-180: 180,
		181:  -179,
		-181: 179,
		360:  0,
		540:  180,
	}
	for in, want := range cases {
		if got := Wrap(in); !almostEqual(got, want, 1e-9) {
			t.Errorf("Wrap(%v): got %v, want %v", in, got, want)
		}
	}
}

func TestAbsoluteBearingQuadrants(t *testing.T) {
	listener := r3.Vector{X: 0, Y: 0, Z: 0}
	cases := []struct {
		src  r3.Vector
		want float64
	}{
		{r3.Vector{X: 1, Y: 0, Z: 1}, -45},  // x>=0, z>=0
		{r3.Vector{X: 1, Y: 0, Z: -1}, -135}, // x>=0, z<0
		{r3.Vector{X: -1, Y: 0, Z: 1}, 45},  // x<0, z>=0
		{r3.Vector{X: -1, Y: 0, Z: -1}, 135}, // x<0, z<0
	}
	for _, c := range cases {
		got := AbsoluteBearing(listener, c.src)
		if !almostEqual(got, c.want, 1e-6) {
			t.Errorf("AbsoluteBearing(%v): got %v, want %v", c.src, got, c.want)
		}
	}
}

func TestCoLocatedSourcesResolveQuadrantTieToRowOne(t *testing.T) {
	same := r3.Vector{X: 5, Y: 1, Z: 5}
	if got := AbsoluteBearing(same, same); got != -90 {
		t.Errorf("co-located AbsoluteBearing: got %v, want -90", got)
	}
}

func TestOffAxisCoeffRange(t *testing.T) {
	cfg := DefaultConfig()
	if c := OffAxisCoeff(0, cfg); !almostEqual(c, 0.2, 1e-9) {
		t.Errorf("OffAxisCoeff(0): got %v, want 0.2", c)
	}
	if c := OffAxisCoeff(90, cfg); !almostEqual(c, 0.6, 1e-9) {
		t.Errorf("OffAxisCoeff(90): got %v, want 0.6", c)
	}
	if c := OffAxisCoeff(180, cfg); !almostEqual(c, 0.6, 1e-9) {
		t.Errorf("OffAxisCoeff(180) should clamp to the 90-degree value: got %v", c)
	}
}

func TestComputeCoLocatedSources(t *testing.T) {
	// Sc.3: two avatars at identical positions, both facing 0 degrees.
	cfg := DefaultConfig()
	pos := r3.Vector{X: 0, Y: 0, Z: 0}

	p := Compute(pos, 0, pos, 0, 1, cfg)
	// c_d=1 at d=0, ratio 1, and beta=-90 gives c_o=0.2+0.4=0.6.
	if !almostEqual(p.Attenuation, 0.6, 1e-9) {
		t.Errorf("Attenuation: got %v, want 0.6", p.Attenuation)
	}
	if p.Delay != 20 {
		t.Errorf("Delay: got %d, want 20", p.Delay)
	}
	if !almostEqual(p.WeakRatio, 0.5, 1e-9) {
		t.Errorf("WeakRatio: got %v, want 0.5", p.WeakRatio)
	}
	if p.GoodIsRight {
		t.Error("alpha=-90 should select the left channel as good")
	}
}

func TestIdentityParamsForLoopback(t *testing.T) {
	p := Identity()
	if p.Attenuation != 1 || p.Delay != 0 || p.WeakRatio != 1 {
		t.Errorf("unexpected identity params: %#v", p)
	}
}
