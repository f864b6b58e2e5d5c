package signals

import (
	"math"
	"testing"

	"intersection/server/internal/state"
)

var testBounds = Bounds{Width: 300, Height: 400, MaxSpeed: 100}

func TestComputeEmptyIsZero(t *testing.T) {
	out := Compute(nil, testBounds)
	if len(out) != len(Names) {
		t.Fatalf("expected %d signals, got %d", len(Names), len(out))
	}
	for name, value := range out {
		if value != 0 {
			t.Fatalf("expected %s to be 0, got %v", name, value)
		}
	}
}

func TestComputeTwoParticipants(t *testing.T) {
	participants := []state.Participant{
		{ID: "a", X: 0, Y: 0, VX: 30, VY: 40},
		{ID: "b", X: 300, Y: 400},
	}
	out := New(testBounds)(participants)

	expect := map[string]float64{
		Population: 2,
		AvgSpeed:   0.25,
		MaxSpeed:   0.5,
		CentroidX:  0.5,
		CentroidY:  0.5,
		Spread:     0.5,
		Closeness:  0,
	}
	for name, want := range expect {
		if math.Abs(out[name]-want) > 1e-12 {
			t.Fatalf("expected %s=%v, got %v", name, want, out[name])
		}
	}
}

func TestComputeClampsSpeedRatio(t *testing.T) {
	out := Compute([]state.Participant{{ID: "a", VX: 1000}}, testBounds)
	if out[MaxSpeed] != 1 || out[AvgSpeed] != 1 {
		t.Fatalf("expected speed ratios clamped to 1, got %+v", out)
	}
	if out[Closeness] != 0 {
		t.Fatalf("expected closeness 0 for a single participant, got %v", out[Closeness])
	}
}

func TestComputeWithoutBounds(t *testing.T) {
	out := Compute([]state.Participant{{ID: "a", X: 10, VX: 5}}, Bounds{})
	if out[AvgSpeed] != 0 || out[CentroidX] != 0 {
		t.Fatalf("expected zero ratios without bounds, got %+v", out)
	}
}
