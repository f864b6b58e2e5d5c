// Package harmony chooses sequencer slots for new notes so that the aggregate
// harmonic tension tracks a population-scaled target.
package harmony

import "math"

const (
	// Voices is the number of concurrent melodic layers.
	Voices = 3
	// Columns is the number of steps in one voice cycle.
	Columns = 12
	// Slots is the size of the voice × column matrix.
	Slots = Voices * Columns

	// UnstableThreshold marks notes that must be followed by a resolving note
	// when placed in the final steps of a cycle.
	UnstableThreshold = 6.0
	// ResolvingThreshold marks notes stable enough to resolve tension.
	ResolvingThreshold = 2.0

	maxTarget        = 8.0
	resolutionColumn = 10
	resolutionWindow = 3
)

// Instability is the tension weight of each pitch class measured from the root,
// on a 0 (unison) to 10 (tritone) scale.
var Instability = [12]float64{
	0,   // unison
	9,   // minor second
	6,   // major second
	4,   // minor third
	3,   // major third
	5,   // perfect fourth
	10,  // tritone
	1,   // perfect fifth
	4.5, // minor sixth
	3.5, // major sixth
	7,   // minor seventh
	8.5, // major seventh
}

// InstabilityOf returns the tension weight of a note index, folding it into 0-11.
func InstabilityOf(note int) float64 {
	note %= len(Instability)
	if note < 0 {
		note += len(Instability)
	}
	return Instability[note]
}

// Target is the progression distance the placer aims for at a given population.
func Target(population int) float64 {
	if population < 0 {
		population = 0
	}
	return math.Min(maxTarget, math.Log(float64(population)+1)*2)
}

// Slot addresses one step of one voice.
type Slot struct {
	Voice  int `json:"voice"`
	Column int `json:"column"`
}

// Valid reports whether the slot lies inside the voice × column matrix.
func (s Slot) Valid() bool {
	return s.Voice >= 0 && s.Voice < Voices && s.Column >= 0 && s.Column < Columns
}
