package engine

import (
	"time"

	"intersection/server/internal/mapping"
	"intersection/server/internal/sequencer"
)

// PayloadVersion is bumped whenever the payload layout changes.
const PayloadVersion = 1

// Grid is one voice of the sequencer addressed to a downstream target.
type Grid struct {
	Target string         `json:"target"`
	Voice  string         `json:"voice"`
	Cells  sequencer.Grid `json:"cells"`
}

// Payload is everything the downstream synthesis consumer needs for one tick.
type Payload struct {
	Version int                `json:"version"`
	Tick    uint64             `json:"tick"`
	Time    time.Time          `json:"time"`
	Signals map[string]float64 `json:"signals"`
	Params  []mapping.Param    `json:"params"`
	Grids   [3]Grid            `json:"grids"`
}

// Param looks up a parameter by name.
func (p Payload) Param(name string) (float64, bool) {
	for _, param := range p.Params {
		if param.Name == name {
			return param.Value, true
		}
	}
	return 0, false
}
