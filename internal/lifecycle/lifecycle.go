package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// Windows bundles the SLA windows the lifecycle drives for one ticket.
// Either may be nil when no policy applied at creation.
type Windows struct {
	FirstResponse *domain.SlaWindow
	Resolution    *domain.SlaWindow
}

// TransitionOutcome reports the effects of a successful transition.
type TransitionOutcome struct {
	Changed bool
	// NewResolution is set when reopening created a fresh resolution window.
	NewResolution *domain.SlaWindow
	// PolicyErr carries a non-blocking policy resolution failure.
	PolicyErr error
	Events    []events.Event
}

// Lifecycle validates and applies status transitions, driving SLA windows as
// a side effect. It mutates the ticket and windows in memory; persistence is
// the caller's concern.
type Lifecycle struct {
	resolver sla.PolicyResolver
	logger   *zap.Logger
}

// NewLifecycle constructs the lifecycle engine.
func NewLifecycle(resolver sla.PolicyResolver, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{resolver: resolver, logger: logger}
}

// ApplyTransition moves the ticket to newStatus if the workflow allows it.
// Returns ALREADY_TERMINAL for any move off CLOSED other than REOPENED and
// INVALID_TRANSITION for edges outside the table.
func (l *Lifecycle) ApplyTransition(ctx context.Context, ticket *domain.Ticket, windows *Windows, newStatus domain.TicketStatus, actor events.Actor, now time.Time) (*TransitionOutcome, error) {
	from := ticket.Status
	if from == newStatus {
		return &TransitionOutcome{Changed: false}, nil
	}
	if from == domain.TicketStatusClosed && newStatus != domain.TicketStatusReopened {
		return nil, util.NewAlreadyTerminal(string(from))
	}
	if decision := CanTransition(from, newStatus); !decision.Allowed {
		return nil, util.NewInvalidTransition(string(from), string(newStatus))
	}

	outcome := &TransitionOutcome{Changed: true}
	ticket.Status = newStatus
	ticket.UpdatedAt = now

	switch {
	case newStatus.IsPaused() && !from.IsPaused():
		if windows.Resolution != nil {
			sla.Pause(windows.Resolution, now)
		}
		pausedAt := now
		ticket.SlaPausedAt = &pausedAt

	case from.IsPaused() && !newStatus.IsPaused() && !newStatus.IsTerminal():
		if windows.Resolution != nil {
			sla.Resume(windows.Resolution, now)
		}
		ticket.SlaPausedAt = nil
	}

	if newStatus.IsTerminal() {
		if windows.Resolution != nil {
			sla.Complete(windows.Resolution, now)
		}
		// A ticket resolved before any reply settles its first-response
		// window as well; nothing will record a response afterwards.
		if windows.FirstResponse != nil && ticket.FirstResponseAt == nil {
			sla.Complete(windows.FirstResponse, now)
		}
		completedAt := now
		ticket.CompletedAt = &completedAt
		ticket.SlaPausedAt = nil
	}

	if newStatus == domain.TicketStatusReopened {
		ticket.CompletedAt = nil
		ticket.SlaPausedAt = nil
		l.restartResolutionWindow(ctx, ticket, windows, outcome, now)
	}

	outcome.Events = append(outcome.Events, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticket.ID,
		Actor:     actor,
		Timestamp: now,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: from,
			NewStatus: newStatus,
		},
	})
	return outcome, nil
}

// restartResolutionWindow gives a reopened ticket a fresh resolution clock
// from a fresh policy lookup. The old frozen window is left untouched.
func (l *Lifecycle) restartResolutionWindow(ctx context.Context, ticket *domain.Ticket, windows *Windows, outcome *TransitionOutcome, now time.Time) {
	policy, err := l.resolver.Resolve(ctx, sla.ScopeForTicket(ticket))
	if err != nil {
		l.logger.Warn("policy resolution failed on reopen",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		outcome.PolicyErr = err
		windows.Resolution = nil
		return
	}
	fresh := sla.NewWindow(ticket.ID, domain.SlaWindowResolution, policy.ResolutionTarget, now)
	windows.Resolution = fresh
	outcome.NewResolution = fresh
}

// RecordFirstResponse marks the ticket's first agent reply. Idempotent:
// a second call is a no-op.
func (l *Lifecycle) RecordFirstResponse(ticket *domain.Ticket, windows *Windows, actor events.Actor, now time.Time) []events.Event {
	if ticket.FirstResponseAt != nil {
		return nil
	}
	respondedAt := now
	ticket.FirstResponseAt = &respondedAt
	ticket.UpdatedAt = now

	state := domain.SlaWindowState("")
	if windows.FirstResponse != nil {
		sla.Complete(windows.FirstResponse, now)
		state = windows.FirstResponse.State
	}
	return []events.Event{{
		ID:        uuid.NewString(),
		Type:      events.EventFirstResponseRecorded,
		TicketID:  ticket.ID,
		Actor:     actor,
		Timestamp: now,
		Payload: events.FirstResponsePayload{
			RespondedAt: respondedAt,
			State:       state,
		},
	}}
}

// RetargetWindows re-resolves the SLA policy after a team or category change
// and updates the targets of non-terminal windows. Accumulated progress is
// kept so a transfer neither penalizes nor rewards the ticket.
func (l *Lifecycle) RetargetWindows(ctx context.Context, ticket *domain.Ticket, windows *Windows) error {
	policy, err := l.resolver.Resolve(ctx, sla.ScopeForTicket(ticket))
	if err != nil {
		l.logger.Warn("policy resolution failed on transfer",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return err
	}
	if windows.FirstResponse != nil && !windows.FirstResponse.Terminal() {
		windows.FirstResponse.TargetDuration = policy.FirstResponseTarget
	}
	if windows.Resolution != nil && !windows.Resolution.Terminal() {
		windows.Resolution.TargetDuration = policy.ResolutionTarget
	}
	return nil
}

// StartWindows resolves the SLA policy for a new ticket and starts both
// windows. A missing policy is returned as a non-blocking error and the
// ticket gets no windows.
func (l *Lifecycle) StartWindows(ctx context.Context, ticket *domain.Ticket, now time.Time) (*Windows, error) {
	policy, err := l.resolver.Resolve(ctx, sla.ScopeForTicket(ticket))
	if err != nil {
		l.logger.Warn("policy resolution failed on create",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return &Windows{}, err
	}
	return &Windows{
		FirstResponse: sla.NewWindow(ticket.ID, domain.SlaWindowFirstResponse, policy.FirstResponseTarget, now),
		Resolution:    sla.NewWindow(ticket.ID, domain.SlaWindowResolution, policy.ResolutionTarget, now),
	}, nil
}
