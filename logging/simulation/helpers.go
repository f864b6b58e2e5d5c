package simulation

import (
	"context"

	"intersection/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a loop step exceeds the allotted tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventSlotExhausted is emitted when a participant could not be given a sequencer slot.
	EventSlotExhausted logging.EventType = "simulation.slot_exhausted"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	Phase          string  `json:"phase"`
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// SlotExhaustedPayload records how many participants went unassigned this tick.
type SlotExhaustedPayload struct {
	Unassigned int `json:"unassigned"`
	Population int `json:"population"`
}

// TickBudgetOverrun publishes a warning when a loop phase exceeds its tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SlotExhausted publishes a debug event when the 36-slot matrix is full.
func SlotExhausted(ctx context.Context, pub logging.Publisher, tick uint64, payload SlotExhaustedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSlotExhausted,
		Tick:     tick,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
