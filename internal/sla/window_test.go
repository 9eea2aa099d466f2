package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newResolutionWindow(target time.Duration) *domain.SlaWindow {
	return NewWindow("ticket-1", domain.SlaWindowResolution, target, base)
}

func TestNewWindow_StartsRunning(t *testing.T) {
	w := newResolutionWindow(4 * time.Hour)
	assert.Equal(t, domain.SlaStateRunning, w.State)
	require.NotNil(t, w.LastResumedAt)
	assert.Equal(t, base, *w.LastResumedAt)
	assert.Zero(t, w.AccumulatedActive)
}

func TestPauseResume_AccumulatesOnlyActiveTime(t *testing.T) {
	// 1h active, 2h paused, 2h active, then complete against a 4h target.
	w := newResolutionWindow(4 * time.Hour)

	Pause(w, base.Add(1*time.Hour))
	assert.Equal(t, domain.SlaStatePaused, w.State)
	assert.Equal(t, 1*time.Hour, w.AccumulatedActive)
	assert.Nil(t, w.LastResumedAt)

	Resume(w, base.Add(3*time.Hour))
	assert.Equal(t, domain.SlaStateRunning, w.State)

	Complete(w, base.Add(5*time.Hour))
	assert.Equal(t, 3*time.Hour, w.AccumulatedActive)
	assert.Equal(t, domain.SlaStateMet, w.State)
}

func TestPauseResume_BreachesTighterTarget(t *testing.T) {
	// Same sequence as above but with a 2h target: 3h active > 2h.
	w := newResolutionWindow(2 * time.Hour)

	Pause(w, base.Add(1*time.Hour))
	Resume(w, base.Add(3*time.Hour))
	Complete(w, base.Add(5*time.Hour))

	assert.Equal(t, 3*time.Hour, w.AccumulatedActive)
	assert.Equal(t, domain.SlaStateBreached, w.State)
}

func TestPause_NoOpWhenAlreadyPaused(t *testing.T) {
	w := newResolutionWindow(4 * time.Hour)
	Pause(w, base.Add(30*time.Minute))
	Pause(w, base.Add(90*time.Minute))
	assert.Equal(t, 30*time.Minute, w.AccumulatedActive)
}

func TestResume_NoOpWhenRunning(t *testing.T) {
	w := newResolutionWindow(4 * time.Hour)
	Resume(w, base.Add(1*time.Hour))
	require.NotNil(t, w.LastResumedAt)
	assert.Equal(t, base, *w.LastResumedAt)
}

func TestComplete_IdempotentOnTerminalWindow(t *testing.T) {
	w := newResolutionWindow(1 * time.Hour)
	Complete(w, base.Add(30*time.Minute))
	assert.Equal(t, domain.SlaStateMet, w.State)

	// A later complete must not flip a settled window.
	Complete(w, base.Add(10*time.Hour))
	assert.Equal(t, domain.SlaStateMet, w.State)
	assert.Equal(t, 30*time.Minute, w.AccumulatedActive)
}

func TestComplete_ManyPauseResumeCycles(t *testing.T) {
	w := newResolutionWindow(10 * time.Hour)
	now := base
	var active time.Duration
	for i := 0; i < 5; i++ {
		now = now.Add(20 * time.Minute)
		Pause(w, now)
		active += 20 * time.Minute
		now = now.Add(45 * time.Minute)
		Resume(w, now)
	}
	Complete(w, now.Add(10*time.Minute))
	active += 10 * time.Minute
	assert.Equal(t, active, w.AccumulatedActive)
	assert.Equal(t, domain.SlaStateMet, w.State)
}

func TestRemaining_NonIncreasingWhileRunning(t *testing.T) {
	w := newResolutionWindow(4 * time.Hour)
	prev := Remaining(w, base)
	for i := 1; i <= 8; i++ {
		cur := Remaining(w, base.Add(time.Duration(i)*30*time.Minute))
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestRemaining_ConstantWhilePaused(t *testing.T) {
	w := newResolutionWindow(4 * time.Hour)
	Pause(w, base.Add(1*time.Hour))
	at := Remaining(w, base.Add(1*time.Hour))
	assert.Equal(t, 3*time.Hour, at)
	assert.Equal(t, at, Remaining(w, base.Add(6*time.Hour)))
	assert.Equal(t, at, Remaining(w, base.Add(48*time.Hour)))
}

func TestRemaining_NegativeWhenOverdue(t *testing.T) {
	w := newResolutionWindow(1 * time.Hour)
	assert.Equal(t, -1*time.Hour, Remaining(w, base.Add(2*time.Hour)))
	assert.Equal(t, domain.SlaStateRunning, w.State, "overdue window stays RUNNING until settled")
}

func TestZeroTarget_BreachesOnAnyAccumulation(t *testing.T) {
	w := newResolutionWindow(0)
	Complete(w, base.Add(time.Millisecond))
	assert.Equal(t, domain.SlaStateBreached, w.State)

	// Zero accumulation still meets a zero target.
	w2 := newResolutionWindow(0)
	Complete(w2, base)
	assert.Equal(t, domain.SlaStateMet, w2.State)
}

func TestBackwardsClock_ClampsDeltaToZero(t *testing.T) {
	w := newResolutionWindow(4 * time.Hour)
	Pause(w, base.Add(-10*time.Minute))
	assert.Zero(t, w.AccumulatedActive)
	assert.Equal(t, domain.SlaStatePaused, w.State)
}

func TestDueAt_ShiftsWithPausedTime(t *testing.T) {
	w := newResolutionWindow(4 * time.Hour)
	assert.Equal(t, base.Add(4*time.Hour), DueAt(w, base))

	Pause(w, base.Add(1*time.Hour))
	// Two hours later the projection has slid by the paused time.
	assert.Equal(t, base.Add(6*time.Hour), DueAt(w, base.Add(3*time.Hour)))
}

func TestAtRisk(t *testing.T) {
	w := newResolutionWindow(4 * time.Hour)
	threshold := 30 * time.Minute

	assert.False(t, AtRisk(w, base, threshold))
	assert.True(t, AtRisk(w, base.Add(3*time.Hour+45*time.Minute), threshold))
	assert.False(t, AtRisk(w, base.Add(5*time.Hour), threshold), "already overdue is breached, not at risk")

	Pause(w, base.Add(1*time.Hour))
	assert.False(t, AtRisk(w, base.Add(4*time.Hour), threshold), "paused windows are never at risk")
}

func TestStart_OnlyOnFreshWindow(t *testing.T) {
	w := &domain.SlaWindow{TicketID: "ticket-2", Kind: domain.SlaWindowFirstResponse, TargetDuration: time.Hour}
	Start(w, base)
	assert.Equal(t, domain.SlaStateRunning, w.State)

	Pause(w, base.Add(10*time.Minute))
	Start(w, base.Add(20*time.Minute))
	assert.Equal(t, domain.SlaStatePaused, w.State, "start must not restart a used window")
}
