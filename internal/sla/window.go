package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NewWindow builds a RUNNING window for a ticket and starts it at now.
func NewWindow(ticketID string, kind domain.SlaWindowKind, target time.Duration, now time.Time) *domain.SlaWindow {
	window := &domain.SlaWindow{
		TicketID:       ticketID,
		Kind:           kind,
		TargetDuration: target,
		State:          domain.SlaStateRunning,
	}
	resumedAt := now
	window.LastResumedAt = &resumedAt
	return window
}

// Start initializes the window clock. No-op unless the window has never run.
func Start(window *domain.SlaWindow, now time.Time) {
	if window == nil || window.State != "" {
		return
	}
	window.State = domain.SlaStateRunning
	resumedAt := now
	window.LastResumedAt = &resumedAt
}

// Pause folds elapsed running time into the accumulator and stops the clock.
// No-op unless the window is RUNNING.
func Pause(window *domain.SlaWindow, now time.Time) {
	if window == nil || window.State != domain.SlaStateRunning {
		return
	}
	window.AccumulatedActive += runningDelta(window, now)
	window.LastResumedAt = nil
	window.State = domain.SlaStatePaused
}

// Resume restarts a paused clock. No-op unless the window is PAUSED.
func Resume(window *domain.SlaWindow, now time.Time) {
	if window == nil || window.State != domain.SlaStatePaused {
		return
	}
	resumedAt := now
	window.LastResumedAt = &resumedAt
	window.State = domain.SlaStateRunning
}

// Complete freezes the window, folding in any running time, and settles it as
// MET or BREACHED. Idempotent on terminal windows.
func Complete(window *domain.SlaWindow, now time.Time) {
	if window == nil || window.Terminal() {
		return
	}
	if window.State == domain.SlaStateRunning {
		window.AccumulatedActive += runningDelta(window, now)
		window.LastResumedAt = nil
	}
	if window.AccumulatedActive <= window.TargetDuration {
		window.State = domain.SlaStateMet
	} else {
		window.State = domain.SlaStateBreached
	}
}

// Remaining returns target minus elapsed active time. Negative means the
// window is breached but not yet settled.
func Remaining(window *domain.SlaWindow, now time.Time) time.Duration {
	elapsed := window.AccumulatedActive
	if window.State == domain.SlaStateRunning {
		elapsed += runningDelta(window, now)
	}
	return window.TargetDuration - elapsed
}

// DueAt projects the effective due date from the remaining budget. It is a
// display value only; the accumulated active time is the source of truth.
func DueAt(window *domain.SlaWindow, now time.Time) time.Time {
	return now.Add(Remaining(window, now))
}

// AtRisk reports whether a running window is due within threshold.
func AtRisk(window *domain.SlaWindow, now time.Time, threshold time.Duration) bool {
	if window.State != domain.SlaStateRunning {
		return false
	}
	remaining := Remaining(window, now)
	return remaining >= 0 && remaining <= threshold
}

// runningDelta clamps backwards clock movement to zero so accumulated active
// time never decreases.
func runningDelta(window *domain.SlaWindow, now time.Time) time.Duration {
	if window.LastResumedAt == nil {
		return 0
	}
	delta := now.Sub(*window.LastResumedAt)
	if delta < 0 {
		return 0
	}
	return delta
}
