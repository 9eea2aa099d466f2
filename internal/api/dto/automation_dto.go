package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RuleRequest payload for creating or replacing an automation rule.
type RuleRequest struct {
	TeamID     *string                      `json:"team_id"`
	Name       string                       `json:"name"`
	Priority   int                          `json:"priority"`
	Enabled    bool                         `json:"enabled"`
	Conditions []domain.AutomationCondition `json:"conditions"`
	Actions    []domain.AutomationAction    `json:"actions"`
}

// RuleResponse representation of a rule.
type RuleResponse struct {
	ID         string                       `json:"id"`
	TeamID     *string                      `json:"team_id"`
	Name       string                       `json:"name"`
	Priority   int                          `json:"priority"`
	Enabled    bool                         `json:"enabled"`
	Conditions []domain.AutomationCondition `json:"conditions"`
	Actions    []domain.AutomationAction    `json:"actions"`
	CreatedAt  time.Time                    `json:"created_at"`
	UpdatedAt  time.Time                    `json:"updated_at"`
}

// PolicyRequest payload for an SLA policy. Targets are minutes.
type PolicyRequest struct {
	TeamID                     *string                `json:"team_id"`
	CategoryID                 *string                `json:"category_id"`
	Priority                   *domain.TicketPriority `json:"priority"`
	FirstResponseTargetMinutes int64                  `json:"first_response_target_minutes"`
	ResolutionTargetMinutes    int64                  `json:"resolution_target_minutes"`
}

// PolicyResponse representation of an SLA policy.
type PolicyResponse struct {
	ID                         string                 `json:"id"`
	TeamID                     *string                `json:"team_id"`
	CategoryID                 *string                `json:"category_id"`
	Priority                   *domain.TicketPriority `json:"priority"`
	FirstResponseTargetMinutes int64                  `json:"first_response_target_minutes"`
	ResolutionTargetMinutes    int64                  `json:"resolution_target_minutes"`
	CreatedAt                  time.Time              `json:"created_at"`
}
