package automation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// Action parameter keys.
const (
	ParamStatus   = "status"
	ParamStaffID  = "staff_id"
	ParamTeamID   = "team_id"
	ParamPriority = "priority"
	ParamMessage  = "message"
)

// TicketMutator re-enters the change pipeline on behalf of automation. The
// depth argument is the current automation recursion depth; implementations
// pass depth+1 into any rule evaluation their mutation triggers, so status
// changes applied here face the same transition validation as any other.
type TicketMutator interface {
	SetStatus(ctx context.Context, ticketID string, status domain.TicketStatus, actor events.Actor, depth int) error
	Assign(ctx context.Context, ticketID, staffID string, actor events.Actor, depth int) error
	TransferTeam(ctx context.Context, ticketID, teamID string, actor events.Actor, depth int) error
	SetPriority(ctx context.Context, ticketID string, priority domain.TicketPriority, actor events.Actor, depth int) error
}

// Notifier delivers NOTIFY actions to the notification collaborator.
type Notifier interface {
	Notify(ctx context.Context, ticketID, ruleID, message string) error
}

// ActionError records one failed action within a chain.
type ActionError struct {
	RuleID string
	Type   domain.ActionType
	Err    error
}

func (e ActionError) Error() string {
	return fmt.Sprintf("rule %s action %s: %v", e.RuleID, e.Type, e.Err)
}

// Executor applies planned actions sequentially. A single action's failure is
// recorded and does not abort the remaining actions; one misconfigured rule
// must not block unrelated ones.
type Executor struct {
	mutator  TicketMutator
	notifier Notifier
	maxDepth int
	logger   *zap.Logger
}

// NewExecutor constructs an executor with the given recursion limit.
func NewExecutor(mutator TicketMutator, notifier Notifier, maxDepth int, logger *zap.Logger) *Executor {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{mutator: mutator, notifier: notifier, maxDepth: maxDepth, logger: logger}
}

// Execute applies the action chain for a ticket at the given recursion depth.
// When the depth limit is reached the whole chain fails with a single
// AUTOMATION_DEPTH_EXCEEDED entry; the triggering transition has already
// committed and is unaffected. A caller deadline aborts the remaining
// actions, which are treated as skipped rather than failed.
func (x *Executor) Execute(ctx context.Context, ticketID string, actions []domain.PlannedAction, depth int) []ActionError {
	if len(actions) == 0 {
		return nil
	}
	if depth >= x.maxDepth {
		x.logger.Warn("automation chain aborted",
			zap.String("ticket_id", ticketID),
			zap.Int("depth", depth))
		return []ActionError{{
			RuleID: actions[0].RuleID,
			Type:   actions[0].Action.Type,
			Err:    util.NewAutomationDepthExceeded(depth),
		}}
	}

	var errs []ActionError
	for _, planned := range actions {
		if ctx.Err() != nil {
			break
		}
		if err := x.apply(ctx, ticketID, planned, depth); err != nil {
			x.logger.Warn("automation action failed",
				zap.String("ticket_id", ticketID),
				zap.String("rule_id", planned.RuleID),
				zap.String("action", string(planned.Action.Type)),
				zap.Error(err))
			errs = append(errs, ActionError{RuleID: planned.RuleID, Type: planned.Action.Type, Err: err})
		}
	}
	return errs
}

func (x *Executor) apply(ctx context.Context, ticketID string, planned domain.PlannedAction, depth int) error {
	action := planned.Action
	switch action.Type {
	case domain.ActionSetStatus:
		status := domain.TicketStatus(action.Params[ParamStatus])
		if status == "" {
			return util.NewValidationError("SET_STATUS requires a status param", nil)
		}
		return x.mutator.SetStatus(ctx, ticketID, status, events.System(), depth)

	case domain.ActionAssign:
		staffID := action.Params[ParamStaffID]
		if staffID == "" {
			return util.NewValidationError("ASSIGN requires a staff_id param", nil)
		}
		return x.mutator.Assign(ctx, ticketID, staffID, events.System(), depth)

	case domain.ActionTransferTeam:
		teamID := action.Params[ParamTeamID]
		if teamID == "" {
			return util.NewValidationError("TRANSFER_TEAM requires a team_id param", nil)
		}
		return x.mutator.TransferTeam(ctx, ticketID, teamID, events.System(), depth)

	case domain.ActionSetPriority:
		priority := domain.TicketPriority(action.Params[ParamPriority])
		if priority.Rank() > 4 {
			return util.NewValidationError("SET_PRIORITY requires a valid priority param", nil)
		}
		return x.mutator.SetPriority(ctx, ticketID, priority, events.System(), depth)

	case domain.ActionNotify:
		return x.notifier.Notify(ctx, ticketID, planned.RuleID, action.Params[ParamMessage])

	default:
		return util.NewValidationError("unknown action type", map[string]any{"type": string(action.Type)})
	}
}
