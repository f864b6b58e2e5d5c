package harmony

import (
	"math"
	"math/rand"
	"time"
)

// Options tunes placement.
type Options struct {
	// EnforceResolution makes the placer reject unstable notes in the last
	// steps of a cycle unless a resolving note follows within three steps.
	// When false every free slot is a candidate.
	EnforceResolution bool
	// Rand drives the weighted pick. A time-seeded source is used when nil.
	Rand *rand.Rand
}

// Placer tracks which slots are occupied and by which note.
type Placer struct {
	opts     Options
	rng      *rand.Rand
	occupied map[Slot]int
}

// NewPlacer returns an empty placer.
func NewPlacer(opts Options) *Placer {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Placer{
		opts:     opts,
		rng:      rng,
		occupied: make(map[Slot]int, Slots),
	}
}

// Sync replaces the occupancy view with occupied (slot → note). Invalid slots are ignored.
func (p *Placer) Sync(occupied map[Slot]int) {
	clear(p.occupied)
	for slot, note := range occupied {
		if slot.Valid() {
			p.occupied[slot] = note
		}
	}
}

// Reserve marks slot as holding note. It fails when the slot is invalid or taken.
func (p *Placer) Reserve(slot Slot, note int) bool {
	if !slot.Valid() {
		return false
	}
	if _, taken := p.occupied[slot]; taken {
		return false
	}
	p.occupied[slot] = note
	return true
}

// Occupied returns the number of occupied slots.
func (p *Placer) Occupied() int {
	return len(p.occupied)
}

// FreeSlots lists unoccupied slots ordered by voice, then column.
func (p *Placer) FreeSlots() []Slot {
	free := make([]Slot, 0, Slots-len(p.occupied))
	for voice := 0; voice < Voices; voice++ {
		for column := 0; column < Columns; column++ {
			slot := Slot{Voice: voice, Column: column}
			if _, taken := p.occupied[slot]; !taken {
				free = append(free, slot)
			}
		}
	}
	return free
}

// ProgressionDistance is the average instability over the occupied notes.
func (p *Placer) ProgressionDistance() float64 {
	if len(p.occupied) == 0 {
		return 0
	}
	total := 0.0
	for _, note := range p.occupied {
		total += InstabilityOf(note)
	}
	return total / float64(len(p.occupied))
}

// Place picks a free slot for note and reserves it. It returns false when the
// matrix is full, or when resolution is enforced and no free slot keeps the
// cycle resolvable; callers decide whether to place the note elsewhere.
func (p *Placer) Place(note, population int) (Slot, bool) {
	free := p.FreeSlots()
	if len(free) == 0 {
		return Slot{}, false
	}
	target := Target(population)

	candidates := free
	if p.opts.EnforceResolution {
		filtered := make([]Slot, 0, len(free))
		for _, slot := range free {
			if p.resolves(slot, note) {
				filtered = append(filtered, slot)
			}
		}
		if len(filtered) == 0 {
			return Slot{}, false
		}
		candidates = filtered
	}

	sum := InstabilityOf(note)
	for _, occupant := range p.occupied {
		sum += InstabilityOf(occupant)
	}
	avg := sum / float64(len(p.occupied)+1)
	distanceScore := 1 / (1 + math.Abs(avg-target))

	scores := make([]float64, len(candidates))
	total := 0.0
	for i, slot := range candidates {
		scores[i] = distanceScore * positionScore(slot.Column)
		total += scores[i]
	}

	chosen := candidates[0]
	if total > 0 {
		roll := p.rng.Float64() * total
		for i, score := range scores {
			roll -= score
			if roll < 0 {
				chosen = candidates[i]
				break
			}
			chosen = candidates[i]
		}
	}
	p.occupied[chosen] = note
	return chosen, true
}

// resolves reports whether placing note at slot keeps the cycle resolvable:
// an unstable note in the final steps needs a stable note in the same voice
// within the next resolutionWindow steps, wrapping around the cycle.
func (p *Placer) resolves(slot Slot, note int) bool {
	if InstabilityOf(note) <= UnstableThreshold || slot.Column < resolutionColumn {
		return true
	}
	for step := 1; step <= resolutionWindow; step++ {
		next := Slot{Voice: slot.Voice, Column: (slot.Column + step) % Columns}
		if occupant, ok := p.occupied[next]; ok && InstabilityOf(occupant) <= ResolvingThreshold {
			return true
		}
	}
	return false
}

// positionScore favours columns near the middle of the cycle.
func positionScore(column int) float64 {
	const middle = (Columns - 1) / 2.0
	return 1 - math.Abs(float64(column)-middle)/(middle+1)
}
