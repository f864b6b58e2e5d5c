package engine

import (
	"time"

	"intersection/server/internal/state"
)

type closePair struct {
	a, b string
}

// gate is a debounced contact signal: any pair newly closer than the gate
// radius pushes a shared deadline out by the hold duration.
type gate struct {
	pairs    map[closePair]struct{}
	deadline time.Time
}

func (g *gate) update(participants []state.Participant, now time.Time, radius float64, hold time.Duration) bool {
	limit := radius * radius
	current := make(map[closePair]struct{})
	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			dx := participants[i].X - participants[j].X
			dy := participants[i].Y - participants[j].Y
			if dx*dx+dy*dy >= limit {
				continue
			}
			a, b := state.OrderedPair(participants[i].ID, participants[j].ID)
			key := closePair{a: a, b: b}
			current[key] = struct{}{}
			if _, seen := g.pairs[key]; !seen {
				if deadline := now.Add(hold); deadline.After(g.deadline) {
					g.deadline = deadline
				}
			}
		}
	}
	g.pairs = current
	return now.Before(g.deadline)
}
