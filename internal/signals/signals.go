// Package signals derives the named scalar signals the mapping rules read.
package signals

import (
	"math"

	"intersection/server/internal/state"
)

// Signal names produced by Compute.
const (
	Population = "population"
	AvgSpeed   = "avgSpeed"
	MaxSpeed   = "maxSpeed"
	Spread     = "spread"
	Closeness  = "closeness"
	CentroidX  = "centroidX"
	CentroidY  = "centroidY"
)

// Names lists every signal Compute emits, in a stable order.
var Names = []string{Population, AvgSpeed, MaxSpeed, Spread, Closeness, CentroidX, CentroidY}

// Func computes a signal snapshot from the spawned participants.
type Func func(participants []state.Participant) map[string]float64

// Bounds normalises distances and speeds into [0,1].
type Bounds struct {
	Width    float64
	Height   float64
	MaxSpeed float64
}

// New returns a Func bound to the given world bounds.
func New(bounds Bounds) Func {
	return func(participants []state.Participant) map[string]float64 {
		return Compute(participants, bounds)
	}
}

// Compute derives every signal. With no participants every signal is 0.
func Compute(participants []state.Participant, bounds Bounds) map[string]float64 {
	out := make(map[string]float64, len(Names))
	for _, name := range Names {
		out[name] = 0
	}
	n := len(participants)
	if n == 0 {
		return out
	}
	out[Population] = float64(n)

	diagonal := math.Hypot(bounds.Width, bounds.Height)
	var sumSpeed, maxSpeed, cx, cy float64
	for _, p := range participants {
		speed := p.Speed()
		sumSpeed += speed
		maxSpeed = math.Max(maxSpeed, speed)
		cx += p.X
		cy += p.Y
	}
	cx /= float64(n)
	cy /= float64(n)

	out[AvgSpeed] = ratio(sumSpeed/float64(n), bounds.MaxSpeed)
	out[MaxSpeed] = ratio(maxSpeed, bounds.MaxSpeed)
	out[CentroidX] = ratio(cx, bounds.Width)
	out[CentroidY] = ratio(cy, bounds.Height)

	var spread float64
	for _, p := range participants {
		spread += math.Hypot(p.X-cx, p.Y-cy)
	}
	out[Spread] = ratio(spread/float64(n), diagonal)

	if n > 1 {
		closest := math.Inf(1)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				d := math.Hypot(participants[i].X-participants[j].X, participants[i].Y-participants[j].Y)
				closest = math.Min(closest, d)
			}
		}
		out[Closeness] = 1 - ratio(closest, diagonal)
	}
	return out
}

func ratio(v, scale float64) float64 {
	if !(scale > 0) || math.IsNaN(v) {
		return 0
	}
	r := v / scale
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
