package lifecycle

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// allowedTransitions is the canonical workflow table. Both the mutation path
// and the allowed-next-statuses query read from it, so there is exactly one
// copy to keep correct.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew: {
		domain.TicketStatusTriaged,
		domain.TicketStatusAssigned,
		domain.TicketStatusInProgress,
		domain.TicketStatusWaitingOnRequester,
		domain.TicketStatusWaitingOnVendor,
		domain.TicketStatusResolved,
	},
	domain.TicketStatusTriaged: {
		domain.TicketStatusAssigned,
		domain.TicketStatusInProgress,
		domain.TicketStatusWaitingOnRequester,
		domain.TicketStatusWaitingOnVendor,
		domain.TicketStatusResolved,
	},
	domain.TicketStatusAssigned: {
		domain.TicketStatusInProgress,
		domain.TicketStatusWaitingOnRequester,
		domain.TicketStatusWaitingOnVendor,
		domain.TicketStatusResolved,
	},
	domain.TicketStatusInProgress: {
		domain.TicketStatusWaitingOnRequester,
		domain.TicketStatusWaitingOnVendor,
		domain.TicketStatusResolved,
	},
	domain.TicketStatusWaitingOnRequester: {
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
	},
	domain.TicketStatusWaitingOnVendor: {
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
	},
	domain.TicketStatusResolved: {
		domain.TicketStatusReopened,
		domain.TicketStatusClosed,
	},
	domain.TicketStatusClosed: {
		domain.TicketStatusReopened,
	},
	domain.TicketStatusReopened: {
		domain.TicketStatusTriaged,
		domain.TicketStatusAssigned,
		domain.TicketStatusInProgress,
		domain.TicketStatusWaitingOnRequester,
		domain.TicketStatusWaitingOnVendor,
		domain.TicketStatusResolved,
	},
}

// TransitionDecision is the outcome of a transition check.
type TransitionDecision struct {
	Allowed bool
	Reason  string
}

// CanTransition reports whether the workflow permits moving from one status
// to another. Self-transitions are always allowed and have no SLA effect.
func CanTransition(from, to domain.TicketStatus) TransitionDecision {
	if from == to {
		return TransitionDecision{Allowed: true}
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return TransitionDecision{Allowed: true}
		}
	}
	return TransitionDecision{Allowed: false, Reason: util.CodeInvalidTransition}
}

// AllowedTargets returns the statuses reachable from the given one, in table
// order. The result is a copy.
func AllowedTargets(from domain.TicketStatus) []domain.TicketStatus {
	targets := allowedTransitions[from]
	out := make([]domain.TicketStatus, len(targets))
	copy(out, targets)
	return out
}
