package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CategoryID  string                `json:"category_id"`
	TeamID      *string               `json:"team_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string                `json:"id"`
	ExternalKey string                `json:"external_key"`
	CategoryID  string                `json:"category_id"`
	TeamID      *string               `json:"team_id"`
	AssigneeID  *string               `json:"assignee_id"`
	Title       string                `json:"title"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID              string                  `json:"id"`
	ExternalKey     string                  `json:"external_key"`
	CategoryID      string                  `json:"category_id"`
	TeamID          *string                 `json:"team_id"`
	AssigneeID      *string                 `json:"assignee_id"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	Status          domain.TicketStatus     `json:"status"`
	Priority        domain.TicketPriority   `json:"priority"`
	Tags            []string                `json:"tags"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	FirstResponseAt *time.Time              `json:"first_response_at"`
	CompletedAt     *time.Time              `json:"completed_at"`
	Messages        []TicketMessageResponse `json:"messages"`
	History         []TicketHistoryResponse `json:"history,omitempty"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID          string                   `json:"id"`
	MessageType domain.TicketMessageType `json:"message_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id"`
	Body        string                   `json:"body"`
	CreatedAt   time.Time                `json:"created_at"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body        string                    `json:"body"`
	MessageType *domain.TicketMessageType `json:"message_type,omitempty"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignRequest payload.
type AssignRequest struct {
	StaffID string `json:"staff_id"`
}

// TransferTeamRequest payload.
type TransferTeamRequest struct {
	TeamID string `json:"team_id"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// AllowedTransitionsResponse lists the permitted next statuses.
type AllowedTransitionsResponse struct {
	Status  domain.TicketStatus   `json:"status"`
	Allowed []domain.TicketStatus `json:"allowed"`
}

// TicketHistoryResponse represents an audit entry.
type TicketHistoryResponse struct {
	ID            string                   `json:"id"`
	ChangeType    domain.TicketChangeType  `json:"change_type"`
	ChangedByType domain.MessageAuthorType `json:"changed_by_type"`
	ChangedByID   *string                  `json:"changed_by_id"`
	OldValue      map[string]any           `json:"old_value"`
	NewValue      map[string]any           `json:"new_value"`
	CreatedAt     time.Time                `json:"created_at"`
}
