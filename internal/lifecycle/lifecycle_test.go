package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

var testBase = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type stubResolver struct {
	policy *domain.SlaPolicy
	err    error
	calls  int
}

func (r *stubResolver) Resolve(ctx context.Context, scope sla.PolicyScope) (*domain.SlaPolicy, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.policy, nil
}

func testResolver(firstResponse, resolution time.Duration) *stubResolver {
	return &stubResolver{policy: &domain.SlaPolicy{
		FirstResponseTarget: firstResponse,
		ResolutionTarget:    resolution,
	}}
}

func newTestTicket(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:       "ticket-1",
		Status:   status,
		Priority: domain.TicketPriorityP2,
	}
}

func actor() events.Actor {
	staffID := "staff-1"
	return events.Actor{Type: domain.SubjectTypeStaff, StaffID: &staffID}
}

func TestApplyTransition_EmitsStatusChangedEvent(t *testing.T) {
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusNew)
	windows := &Windows{}

	outcome, err := lc.ApplyTransition(context.Background(), ticket, windows, domain.TicketStatusTriaged, actor(), testBase)
	require.NoError(t, err)
	assert.True(t, outcome.Changed)
	require.Len(t, outcome.Events, 1)

	event := outcome.Events[0]
	assert.Equal(t, events.EventTicketStatusChanged, event.Type)
	assert.Equal(t, "ticket-1", event.TicketID)
	payload := event.Payload.(events.TicketStatusChangedPayload)
	assert.Equal(t, domain.TicketStatusNew, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusTriaged, payload.NewStatus)
}

func TestApplyTransition_SelfTransitionIsNoOp(t *testing.T) {
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusInProgress)
	windows := &Windows{Resolution: sla.NewWindow("ticket-1", domain.SlaWindowResolution, 4*time.Hour, testBase)}

	outcome, err := lc.ApplyTransition(context.Background(), ticket, windows, domain.TicketStatusInProgress, actor(), testBase.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.Empty(t, outcome.Events)
	assert.Equal(t, domain.SlaStateRunning, windows.Resolution.State)
}

func TestApplyTransition_InvalidEdgeDenied(t *testing.T) {
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusInProgress)

	_, err := lc.ApplyTransition(context.Background(), ticket, &Windows{}, domain.TicketStatusTriaged, actor(), testBase)
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeInvalidTransition))
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status, "ticket unchanged on denial")
}

func TestApplyTransition_ClosedTicketIsTerminal(t *testing.T) {
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusClosed)

	_, err := lc.ApplyTransition(context.Background(), ticket, &Windows{}, domain.TicketStatusInProgress, actor(), testBase)
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeAlreadyTerminal))
}

func TestApplyTransition_PausesAndResumesResolutionClock(t *testing.T) {
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusInProgress)
	windows := &Windows{Resolution: sla.NewWindow("ticket-1", domain.SlaWindowResolution, 4*time.Hour, testBase)}

	_, err := lc.ApplyTransition(context.Background(), ticket, windows, domain.TicketStatusWaitingOnRequester, actor(), testBase.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.SlaStatePaused, windows.Resolution.State)
	assert.Equal(t, time.Hour, windows.Resolution.AccumulatedActive)
	require.NotNil(t, ticket.SlaPausedAt)

	_, err = lc.ApplyTransition(context.Background(), ticket, windows, domain.TicketStatusInProgress, actor(), testBase.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.SlaStateRunning, windows.Resolution.State)
	assert.Nil(t, ticket.SlaPausedAt)
}

func TestApplyTransition_WaitingToWaitingKeepsClockPaused(t *testing.T) {
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusInProgress)
	windows := &Windows{Resolution: sla.NewWindow("ticket-1", domain.SlaWindowResolution, 4*time.Hour, testBase)}

	_, err := lc.ApplyTransition(context.Background(), ticket, windows, domain.TicketStatusWaitingOnRequester, actor(), testBase.Add(time.Hour))
	require.NoError(t, err)

	// WAITING_ON_REQUESTER -> WAITING_ON_VENDOR is not a workflow edge, so
	// pause bookkeeping cannot double-fire via that route.
	_, err = lc.ApplyTransition(context.Background(), ticket, windows, domain.TicketStatusWaitingOnVendor, actor(), testBase.Add(2*time.Hour))
	require.Error(t, err)
	assert.Equal(t, time.Hour, windows.Resolution.AccumulatedActive)
}

func TestApplyTransition_ResolveCompletesWindows(t *testing.T) {
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusInProgress)
	windows := &Windows{
		FirstResponse: sla.NewWindow("ticket-1", domain.SlaWindowFirstResponse, time.Hour, testBase),
		Resolution:    sla.NewWindow("ticket-1", domain.SlaWindowResolution, 4*time.Hour, testBase),
	}

	_, err := lc.ApplyTransition(context.Background(), ticket, windows, domain.TicketStatusResolved, actor(), testBase.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.SlaStateMet, windows.Resolution.State)
	assert.Equal(t, domain.SlaStateBreached, windows.FirstResponse.State, "unanswered first-response window settles on resolve")
	require.NotNil(t, ticket.CompletedAt)
	assert.Equal(t, testBase.Add(3*time.Hour), *ticket.CompletedAt)
}

func TestApplyTransition_FullSlaScenario(t *testing.T) {
	// NEW, 1h active, 2h waiting, 2h active, RESOLVED: 3h active against 4h.
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusNew)
	windows := &Windows{Resolution: sla.NewWindow("ticket-1", domain.SlaWindowResolution, 4*time.Hour, testBase)}
	ctx := context.Background()

	_, err := lc.ApplyTransition(ctx, ticket, windows, domain.TicketStatusWaitingOnRequester, actor(), testBase.Add(1*time.Hour))
	require.NoError(t, err)
	_, err = lc.ApplyTransition(ctx, ticket, windows, domain.TicketStatusInProgress, actor(), testBase.Add(3*time.Hour))
	require.NoError(t, err)
	_, err = lc.ApplyTransition(ctx, ticket, windows, domain.TicketStatusResolved, actor(), testBase.Add(5*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Hour, windows.Resolution.AccumulatedActive)
	assert.Equal(t, domain.SlaStateMet, windows.Resolution.State)
}

func TestApplyTransition_ReopenStartsFreshResolutionWindow(t *testing.T) {
	resolver := testResolver(time.Hour, 8*time.Hour)
	lc := NewLifecycle(resolver, nil)
	ticket := newTestTicket(domain.TicketStatusClosed)
	old := sla.NewWindow("ticket-1", domain.SlaWindowResolution, 4*time.Hour, testBase)
	sla.Complete(old, testBase.Add(5*time.Hour))
	windows := &Windows{Resolution: old}

	outcome, err := lc.ApplyTransition(context.Background(), ticket, windows, domain.TicketStatusReopened, actor(), testBase.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, outcome.NewResolution)
	assert.Same(t, outcome.NewResolution, windows.Resolution)
	assert.NotSame(t, old, windows.Resolution)
	assert.Zero(t, windows.Resolution.AccumulatedActive)
	assert.Equal(t, 8*time.Hour, windows.Resolution.TargetDuration)
	assert.Equal(t, domain.SlaStateRunning, windows.Resolution.State)
	assert.Equal(t, domain.SlaStateBreached, old.State, "frozen window untouched")
	assert.Nil(t, ticket.CompletedAt)
}

func TestApplyTransition_ReopenWithoutPolicyProceeds(t *testing.T) {
	resolver := &stubResolver{err: util.NewPolicyNotFound(nil)}
	lc := NewLifecycle(resolver, nil)
	ticket := newTestTicket(domain.TicketStatusResolved)
	windows := &Windows{}

	outcome, err := lc.ApplyTransition(context.Background(), ticket, windows, domain.TicketStatusReopened, actor(), testBase)
	require.NoError(t, err, "a config gap must not block the transition")
	assert.True(t, outcome.Changed)
	assert.Error(t, outcome.PolicyErr)
	assert.Nil(t, windows.Resolution)
	assert.Equal(t, domain.TicketStatusReopened, ticket.Status)
}

func TestRecordFirstResponse_Idempotent(t *testing.T) {
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusInProgress)
	windows := &Windows{FirstResponse: sla.NewWindow("ticket-1", domain.SlaWindowFirstResponse, time.Hour, testBase)}

	evts := lc.RecordFirstResponse(ticket, windows, actor(), testBase.Add(30*time.Minute))
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventFirstResponseRecorded, evts[0].Type)
	assert.Equal(t, domain.SlaStateMet, windows.FirstResponse.State)
	require.NotNil(t, ticket.FirstResponseAt)
	first := *ticket.FirstResponseAt

	evts = lc.RecordFirstResponse(ticket, windows, actor(), testBase.Add(2*time.Hour))
	assert.Empty(t, evts)
	assert.Equal(t, first, *ticket.FirstResponseAt)
}

func TestRecordFirstResponse_BreachedWhenLate(t *testing.T) {
	lc := NewLifecycle(testResolver(time.Hour, 4*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusInProgress)
	windows := &Windows{FirstResponse: sla.NewWindow("ticket-1", domain.SlaWindowFirstResponse, time.Hour, testBase)}

	lc.RecordFirstResponse(ticket, windows, actor(), testBase.Add(90*time.Minute))
	assert.Equal(t, domain.SlaStateBreached, windows.FirstResponse.State)
}

func TestRetargetWindows_KeepsAccumulatedProgress(t *testing.T) {
	resolver := testResolver(2*time.Hour, 8*time.Hour)
	lc := NewLifecycle(resolver, nil)
	ticket := newTestTicket(domain.TicketStatusInProgress)
	resolution := sla.NewWindow("ticket-1", domain.SlaWindowResolution, 4*time.Hour, testBase)
	sla.Pause(resolution, testBase.Add(time.Hour))
	windows := &Windows{Resolution: resolution}

	require.NoError(t, lc.RetargetWindows(context.Background(), ticket, windows))
	assert.Equal(t, 8*time.Hour, resolution.TargetDuration)
	assert.Equal(t, time.Hour, resolution.AccumulatedActive)
	assert.Equal(t, domain.SlaStatePaused, resolution.State)
}

func TestRetargetWindows_SkipsTerminalWindows(t *testing.T) {
	lc := NewLifecycle(testResolver(2*time.Hour, 8*time.Hour), nil)
	ticket := newTestTicket(domain.TicketStatusResolved)
	frozen := sla.NewWindow("ticket-1", domain.SlaWindowResolution, 4*time.Hour, testBase)
	sla.Complete(frozen, testBase.Add(time.Hour))
	windows := &Windows{Resolution: frozen}

	require.NoError(t, lc.RetargetWindows(context.Background(), ticket, windows))
	assert.Equal(t, 4*time.Hour, frozen.TargetDuration)
}

func TestStartWindows_ResolvesPolicyOnce(t *testing.T) {
	resolver := testResolver(time.Hour, 4*time.Hour)
	lc := NewLifecycle(resolver, nil)
	ticket := newTestTicket(domain.TicketStatusNew)

	windows, err := lc.StartWindows(context.Background(), ticket, testBase)
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls)
	require.NotNil(t, windows.FirstResponse)
	require.NotNil(t, windows.Resolution)
	assert.Equal(t, time.Hour, windows.FirstResponse.TargetDuration)
	assert.Equal(t, 4*time.Hour, windows.Resolution.TargetDuration)
}
