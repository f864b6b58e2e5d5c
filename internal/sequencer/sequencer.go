// Package sequencer assigns every connected participant a step in one of three
// voices and renders the assignments as note grids.
package sequencer

import (
	"context"
	"math/rand"
	"time"

	"intersection/server/internal/harmony"
	"intersection/server/internal/pitch"
	"intersection/server/logging"
	loggingSimulation "intersection/server/logging/simulation"
)

// VoiceNames labels the voices from lowest to highest.
var VoiceNames = [harmony.Voices]string{"bass", "baritone", "tenor"}

// VoiceName returns the label of voice, or "" when out of range.
func VoiceName(voice int) string {
	if voice < 0 || voice >= harmony.Voices {
		return ""
	}
	return VoiceNames[voice]
}

// Assignment is the slot and note held by one participant.
type Assignment struct {
	Voice  int `json:"voice"`
	Column int `json:"column"`
	Note   int `json:"note"`
}

// Slot returns the placer slot of the assignment.
func (a Assignment) Slot() harmony.Slot {
	return harmony.Slot{Voice: a.Voice, Column: a.Column}
}

// Grid is one voice: Grid[column][note] is set when a participant holds that note at that step.
type Grid [harmony.Columns][pitch.Classes]bool

// Active counts the set cells.
func (g *Grid) Active() int {
	count := 0
	for column := range g {
		for note := range g[column] {
			if g[column][note] {
				count++
			}
		}
	}
	return count
}

// Grids holds one Grid per voice.
type Grids [harmony.Voices]Grid

// Option customises a Sequencer.
type Option func(*Sequencer)

// WithRand seeds both the placer and the uniform fallback pick.
func WithRand(rng *rand.Rand) Option {
	return func(s *Sequencer) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithPlacerOptions forwards placement tuning to the harmonic placer.
func WithPlacerOptions(opts harmony.Options) Option {
	return func(s *Sequencer) {
		s.placerOpts = opts
	}
}

// WithPublisher routes slot exhaustion events.
func WithPublisher(pub logging.Publisher) Option {
	return func(s *Sequencer) {
		if pub != nil {
			s.publisher = pub
		}
	}
}

type slotPlacer interface {
	Sync(occupied map[harmony.Slot]int)
	Place(note, population int) (harmony.Slot, bool)
	FreeSlots() []harmony.Slot
	Reserve(slot harmony.Slot, note int) bool
	ProgressionDistance() float64
}

// Sequencer owns participant assignments. It is not safe for concurrent use.
type Sequencer struct {
	rng        *rand.Rand
	placerOpts harmony.Options
	placer     slotPlacer
	publisher  logging.Publisher

	assignments map[string]Assignment
	grids       Grids
	updates     uint64
	exhausted   uint64
}

// New constructs an empty sequencer.
func New(opts ...Option) *Sequencer {
	s := &Sequencer{
		publisher:   logging.NopPublisher(),
		assignments: make(map[string]Assignment),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.placerOpts.Rand == nil {
		s.placerOpts.Rand = s.rng
	}
	s.placer = harmony.NewPlacer(s.placerOpts)
	return s
}

// Update reconciles assignments with the connected identifiers and rebuilds
// the grids from scratch. Participants that cannot be placed stay unassigned
// and are retried on the next update.
func (s *Sequencer) Update(ids []string) Grids {
	s.updates++

	connected := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := connected[id]; dup {
			continue
		}
		connected[id] = struct{}{}
		ordered = append(ordered, id)
	}

	for id := range s.assignments {
		if _, ok := connected[id]; !ok {
			delete(s.assignments, id)
		}
	}

	occupied := make(map[harmony.Slot]int, len(s.assignments))
	for _, assignment := range s.assignments {
		occupied[assignment.Slot()] = assignment.Note
	}
	s.placer.Sync(occupied)

	population := len(ordered)
	unassigned := 0
	for _, id := range ordered {
		if _, ok := s.assignments[id]; ok {
			continue
		}
		note := pitch.Index(id)
		slot, ok := s.placer.Place(note, population)
		if !ok {
			slot, ok = s.fallback(note)
		}
		if !ok {
			unassigned++
			continue
		}
		s.assignments[id] = Assignment{Voice: slot.Voice, Column: slot.Column, Note: note}
	}
	if unassigned > 0 {
		s.exhausted += uint64(unassigned)
		loggingSimulation.SlotExhausted(context.Background(), s.publisher, s.updates, loggingSimulation.SlotExhaustedPayload{
			Unassigned: unassigned,
			Population: population,
		}, nil)
	}

	var grids Grids
	for _, assignment := range s.assignments {
		grids[assignment.Voice][assignment.Column][assignment.Note] = true
	}
	s.grids = grids
	return grids
}

func (s *Sequencer) fallback(note int) (harmony.Slot, bool) {
	free := s.placer.FreeSlots()
	if len(free) == 0 {
		return harmony.Slot{}, false
	}
	slot := free[s.rng.Intn(len(free))]
	return slot, s.placer.Reserve(slot, note)
}

// Grids returns the grids produced by the most recent update.
func (s *Sequencer) Grids() Grids {
	return s.grids
}

// Assignments returns a copy of the current assignments.
func (s *Sequencer) Assignments() map[string]Assignment {
	copied := make(map[string]Assignment, len(s.assignments))
	for id, assignment := range s.assignments {
		copied[id] = assignment
	}
	return copied
}

// Assignment returns the assignment held by id.
func (s *Sequencer) Assignment(id string) (Assignment, bool) {
	assignment, ok := s.assignments[id]
	return assignment, ok
}

// ProgressionDistance reports the average instability of the placed notes.
func (s *Sequencer) ProgressionDistance() float64 {
	return s.placer.ProgressionDistance()
}

// Exhausted counts placements skipped because every slot was taken.
func (s *Sequencer) Exhausted() uint64 {
	return s.exhausted
}
