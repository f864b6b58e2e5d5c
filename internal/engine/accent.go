package engine

import (
	"math"
	"time"

	"intersection/server/internal/state"
)

// accent follows the fastest participant with switch hysteresis and keeps the
// smoothed gain, cutoff and resonance it drives.
type accent struct {
	holder     string
	lastSwitch time.Time

	gain      float64
	cutoff    float64
	resonance float64
}

// fastest returns the highest-speed participant, ties going to the smaller id.
func fastest(participants []state.Participant) (state.Participant, bool) {
	var best state.Participant
	found := false
	for _, p := range participants {
		speed := p.Speed()
		if !found || speed > best.Speed() || (speed == best.Speed() && p.ID < best.ID) {
			best = p
			found = true
		}
	}
	return best, found
}

func (a *accent) choose(participants []state.Participant, now time.Time, margin float64, hold time.Duration) {
	candidate, ok := fastest(participants)
	if !ok {
		a.holder = ""
		return
	}
	if candidate.ID == a.holder {
		return
	}
	holderSpeed, held := 0.0, false
	if a.holder != "" {
		for _, p := range participants {
			if p.ID == a.holder {
				holderSpeed, held = p.Speed(), true
				break
			}
		}
	}
	switch {
	case !held,
		now.Sub(a.lastSwitch) >= hold,
		candidate.Speed() >= holderSpeed+margin:
		a.holder = candidate.ID
		a.lastSwitch = now
	}
}

// lead is how far the fastest mover outpaces the average, as a fraction of maxSpeed.
func lead(participants []state.Participant, maxSpeed float64) float64 {
	if len(participants) == 0 || !(maxSpeed > 0) {
		return 0
	}
	var top, sum float64
	for _, p := range participants {
		speed := p.Speed()
		sum += speed
		top = math.Max(top, speed)
	}
	avg := sum / float64(len(participants))
	return math.Max(0, math.Min(1, (top-avg)/maxSpeed))
}

// alpha is the exponential smoothing factor for a step of dt with time constant tau.
func alpha(dt, tau time.Duration) float64 {
	if tau <= 0 {
		return 1
	}
	if dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-dt.Seconds()/tau.Seconds())
}

func smooth(current, target, a float64) float64 {
	return current + (target-current)*a
}

func slew(current, next, limit float64) float64 {
	delta := next - current
	if delta > limit {
		return current + limit
	}
	if delta < -limit {
		return current - limit
	}
	return next
}
