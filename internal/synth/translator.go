// Package synth converts engine payloads into the instruction stream consumed
// by the synthesis runtime: parameter assignments and grid cell toggles keyed
// by opaque target identifiers.
package synth

import (
	"intersection/server/internal/engine"
	"intersection/server/internal/harmony"
	"intersection/server/internal/sequencer"
)

// Kind names an instruction.
type Kind string

const (
	// KindSet assigns Value to the parameter named Target.
	KindSet Kind = "set"
	// KindToggle switches cell [Column][Note] of the grid named Target.
	KindToggle Kind = "toggle"
	// KindClear empties the grid named Target.
	KindClear Kind = "clear"
)

// Instruction is one downstream command.
type Instruction struct {
	Kind   Kind    `json:"kind"`
	Target string  `json:"target"`
	Value  float64 `json:"value,omitempty"`
	Column int     `json:"column,omitempty"`
	Note   int     `json:"note,omitempty"`
	On     bool    `json:"on,omitempty"`
}

// Translator remembers the grids it last emitted so it only toggles cells
// that changed. It is not safe for concurrent use.
type Translator struct {
	grids  [harmony.Voices]sequencer.Grid
	primed bool
}

// NewTranslator returns a translator that assumes the consumer starts with empty grids.
func NewTranslator() *Translator {
	return &Translator{}
}

// Translate emits a set for every parameter and a toggle for every cell that
// differs from the previous translation.
func (t *Translator) Translate(payload engine.Payload) []Instruction {
	instructions := setInstructions(payload)
	for voice, grid := range payload.Grids {
		previous := &t.grids[voice]
		for column := range grid.Cells {
			for note, on := range grid.Cells[column] {
				if previous[column][note] == on {
					continue
				}
				instructions = append(instructions, Instruction{
					Kind:   KindToggle,
					Target: grid.Target,
					Column: column,
					Note:   note,
					On:     on,
				})
			}
		}
		t.grids[voice] = grid.Cells
	}
	t.primed = true
	return instructions
}

// Reset forgets the emitted grids, as if the consumer restarted.
func (t *Translator) Reset() {
	t.grids = [harmony.Voices]sequencer.Grid{}
	t.primed = false
}

// Primed reports whether Translate has run since construction or Reset.
func (t *Translator) Primed() bool {
	return t.primed
}

// Full describes payload completely for a consumer that has just attached:
// every parameter, then each grid cleared and its active cells switched on.
func Full(payload engine.Payload) []Instruction {
	instructions := setInstructions(payload)
	for _, grid := range payload.Grids {
		instructions = append(instructions, Instruction{Kind: KindClear, Target: grid.Target})
		for column := range grid.Cells {
			for note, on := range grid.Cells[column] {
				if on {
					instructions = append(instructions, Instruction{
						Kind:   KindToggle,
						Target: grid.Target,
						Column: column,
						Note:   note,
						On:     true,
					})
				}
			}
		}
	}
	return instructions
}

func setInstructions(payload engine.Payload) []Instruction {
	instructions := make([]Instruction, 0, len(payload.Params))
	for _, param := range payload.Params {
		instructions = append(instructions, Instruction{Kind: KindSet, Target: param.Name, Value: param.Value})
	}
	return instructions
}
