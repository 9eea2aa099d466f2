package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketMessageAdded    EventType = "ticket_message_added"
	EventFirstResponseRecorded EventType = "first_response_recorded"
	EventSlaAtRisk             EventType = "sla_at_risk"
	EventSlaBreached           EventType = "sla_breached"
	EventAutomationRuleMatched EventType = "automation_rule_matched"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	UserID  *string            `json:"user_id,omitempty"`
	StaffID *string            `json:"staff_id,omitempty"`
}

// System returns the actor used for automation and sweep activity.
func System() Actor {
	return Actor{Type: domain.SubjectTypeSystem}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CategoryID string                `json:"category_id"`
	TeamID     *string               `json:"team_id,omitempty"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeStaffID *string `json:"assignee_staff_id,omitempty"`
	TeamID          *string `json:"team_id,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   string                   `json:"message_id"`
	MessageType domain.TicketMessageType `json:"message_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id,omitempty"`
	BodyPreview string                   `json:"body_preview"`
}

// FirstResponsePayload payload.
type FirstResponsePayload struct {
	RespondedAt time.Time             `json:"responded_at"`
	State       domain.SlaWindowState `json:"state"`
}

// SlaPayload payload for at-risk and breach events.
type SlaPayload struct {
	Kind      domain.SlaWindowKind `json:"kind"`
	Remaining time.Duration        `json:"remaining_ms"`
	DueAt     time.Time            `json:"due_at"`
}

// AutomationRuleMatchedPayload payload.
type AutomationRuleMatchedPayload struct {
	RuleID      string `json:"rule_id"`
	RuleName    string `json:"rule_name"`
	ActionCount int    `json:"action_count"`
}
