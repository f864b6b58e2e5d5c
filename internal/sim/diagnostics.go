package sim

import "time"

// Diagnostics is a read-only summary published after every broadcast. It is
// safe to read from any goroutine.
type Diagnostics struct {
	Tick                uint64    `json:"tick"`
	EngineTick          uint64    `json:"engineTick"`
	ServerTime          time.Time `json:"serverTime"`
	Population          int       `json:"population"`
	Spawned             int       `json:"spawned"`
	Observers           int       `json:"observers"`
	Sessions            int       `json:"sessions"`
	ActivePairs         int       `json:"activePairs"`
	PendingCommands     int       `json:"pendingCommands"`
	DroppedCommands     uint64    `json:"droppedCommands"`
	DroppedSessions     uint64    `json:"droppedSessions"`
	OverrunStreak       uint64    `json:"overrunStreak"`
	AccentHolder        string    `json:"accentHolder,omitempty"`
	ProgressionDistance float64   `json:"progressionDistance"`
	MotionRate          int       `json:"motionRate"`
	BroadcastRate       int       `json:"broadcastRate"`
	SelfRate            int       `json:"selfRate"`
}
