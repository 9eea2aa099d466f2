package sla

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// PolicyScope identifies the policy lookup key for a ticket.
type PolicyScope struct {
	TeamID     *string
	CategoryID *string
	Priority   domain.TicketPriority
}

// PolicyResolver resolves the applicable SLA targets for a scope. A missing
// policy surfaces as an error carrying POLICY_NOT_FOUND; callers let the
// ticket operation proceed without SLA windows in that case.
type PolicyResolver interface {
	Resolve(ctx context.Context, scope PolicyScope) (*domain.SlaPolicy, error)
}

// ScopeForTicket derives the policy scope from a ticket projection.
func ScopeForTicket(ticket *domain.Ticket) PolicyScope {
	categoryID := ticket.CategoryID
	scope := PolicyScope{
		TeamID:   ticket.TeamID,
		Priority: ticket.Priority,
	}
	if categoryID != "" {
		scope.CategoryID = &categoryID
	}
	return scope
}
