package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// AutomationHandler exposes automation rule and SLA policy administration.
type AutomationHandler struct {
	automation *service.AutomationService
}

// NewAutomationHandler constructs handler.
func NewAutomationHandler(automationService *service.AutomationService) *AutomationHandler {
	return &AutomationHandler{automation: automationService}
}

// CreateRule POST /staff/automation/rules.
func (h *AutomationHandler) CreateRule(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule := ruleFromRequest(req)
	created, err := h.automation.CreateRule(c.Context(), staff, rule)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ruleResponse(created)})
}

// UpdateRule PUT /staff/automation/rules/:id.
func (h *AutomationHandler) UpdateRule(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule := ruleFromRequest(req)
	rule.ID = c.Params("id")
	updated, err := h.automation.UpdateRule(c.Context(), staff, rule)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(updated)})
}

// DeleteRule DELETE /staff/automation/rules/:id.
func (h *AutomationHandler) DeleteRule(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.automation.DeleteRule(c.Context(), staff, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListRules GET /staff/automation/rules.
func (h *AutomationHandler) ListRules(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	rules, err := h.automation.ListRules(c.Context(), staff)
	if err != nil {
		return err
	}
	items := make([]dto.RuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, ruleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreatePolicy POST /staff/sla/policies.
func (h *AutomationHandler) CreatePolicy(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	policy := &domain.SlaPolicy{
		TeamID:              req.TeamID,
		CategoryID:          req.CategoryID,
		Priority:            req.Priority,
		FirstResponseTarget: time.Duration(req.FirstResponseTargetMinutes) * time.Minute,
		ResolutionTarget:    time.Duration(req.ResolutionTargetMinutes) * time.Minute,
	}
	created, err := h.automation.CreatePolicy(c.Context(), staff, policy)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": policyResponse(created)})
}

// ListPolicies GET /staff/sla/policies.
func (h *AutomationHandler) ListPolicies(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	policies, err := h.automation.ListPolicies(c.Context(), staff)
	if err != nil {
		return err
	}
	items := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, policyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func ruleFromRequest(req dto.RuleRequest) *domain.AutomationRule {
	return &domain.AutomationRule{
		TeamID:     req.TeamID,
		Name:       req.Name,
		Priority:   req.Priority,
		Enabled:    req.Enabled,
		Conditions: req.Conditions,
		Actions:    req.Actions,
	}
}

func ruleResponse(rule *domain.AutomationRule) dto.RuleResponse {
	return dto.RuleResponse{
		ID:         rule.ID,
		TeamID:     rule.TeamID,
		Name:       rule.Name,
		Priority:   rule.Priority,
		Enabled:    rule.Enabled,
		Conditions: rule.Conditions,
		Actions:    rule.Actions,
		CreatedAt:  rule.CreatedAt,
		UpdatedAt:  rule.UpdatedAt,
	}
}

func policyResponse(policy *domain.SlaPolicy) dto.PolicyResponse {
	return dto.PolicyResponse{
		ID:                         policy.ID,
		TeamID:                     policy.TeamID,
		CategoryID:                 policy.CategoryID,
		Priority:                   policy.Priority,
		FirstResponseTargetMinutes: int64(policy.FirstResponseTarget / time.Minute),
		ResolutionTargetMinutes:    int64(policy.ResolutionTarget / time.Minute),
		CreatedAt:                  policy.CreatedAt,
	}
}
