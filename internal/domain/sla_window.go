package domain

import "time"

// SlaWindowKind identifies which target a window tracks.
type SlaWindowKind string

const (
	SlaWindowFirstResponse SlaWindowKind = "FIRST_RESPONSE"
	SlaWindowResolution    SlaWindowKind = "RESOLUTION"
)

// SlaWindowState enumerates clock states. MET and BREACHED are terminal.
type SlaWindowState string

const (
	SlaStateRunning  SlaWindowState = "RUNNING"
	SlaStatePaused   SlaWindowState = "PAUSED"
	SlaStateMet      SlaWindowState = "MET"
	SlaStateBreached SlaWindowState = "BREACHED"
)

// SlaWindow is a single target-duration clock tracked per ticket. The
// accumulated active time is the source of truth; due dates are projections
// derived from it.
type SlaWindow struct {
	ID                string
	TicketID          string
	Kind              SlaWindowKind
	TargetDuration    time.Duration
	AccumulatedActive time.Duration
	LastResumedAt     *time.Time
	State             SlaWindowState
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int64
}

// Terminal reports whether the window is frozen.
func (w *SlaWindow) Terminal() bool {
	return w.State == SlaStateMet || w.State == SlaStateBreached
}

// SlaPolicy holds resolved target durations for a policy scope.
type SlaPolicy struct {
	ID                  string
	TeamID              *string
	CategoryID          *string
	Priority            *TicketPriority
	FirstResponseTarget time.Duration
	ResolutionTarget    time.Duration
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
