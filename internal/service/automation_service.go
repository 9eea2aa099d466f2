package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// AutomationService manages automation rules and SLA policies. Admins manage
// any scope; team leads manage rules for their own team only.
type AutomationService struct {
	rules    repository.RuleRepository
	policies repository.SlaPolicyRepository
}

// NewAutomationService creates the service.
func NewAutomationService(rules repository.RuleRepository, policies repository.SlaPolicyRepository) *AutomationService {
	return &AutomationService{rules: rules, policies: policies}
}

func (s *AutomationService) authorizeRuleScope(actor *domain.StaffMember, teamID *string) error {
	if actor == nil {
		return util.NewUnauthorized("staff required")
	}
	if actor.Role == domain.StaffRoleAdmin {
		return nil
	}
	if actor.Role == domain.StaffRoleTeamLead && teamID != nil && actor.TeamID != nil && *teamID == *actor.TeamID {
		return nil
	}
	return util.NewForbidden("insufficient role for rule scope")
}

// CreateRule validates and stores an automation rule.
func (s *AutomationService) CreateRule(ctx context.Context, actor *domain.StaffMember, rule *domain.AutomationRule) (*domain.AutomationRule, error) {
	if err := s.authorizeRuleScope(actor, rule.TeamID); err != nil {
		return nil, err
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, util.MapError(err)
	}
	return rule, nil
}

// UpdateRule validates and replaces an automation rule.
func (s *AutomationService) UpdateRule(ctx context.Context, actor *domain.StaffMember, rule *domain.AutomationRule) (*domain.AutomationRule, error) {
	existing, err := s.rules.GetByID(ctx, rule.ID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if err := s.authorizeRuleScope(actor, existing.TeamID); err != nil {
		return nil, err
	}
	if err := s.authorizeRuleScope(actor, rule.TeamID); err != nil {
		return nil, err
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, util.MapError(err)
	}
	return rule, nil
}

// DeleteRule removes a rule.
func (s *AutomationService) DeleteRule(ctx context.Context, actor *domain.StaffMember, id string) error {
	existing, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return util.MapError(err)
	}
	if err := s.authorizeRuleScope(actor, existing.TeamID); err != nil {
		return err
	}
	return util.MapError(s.rules.Delete(ctx, id))
}

// ListRules returns all rules for admin review.
func (s *AutomationService) ListRules(ctx context.Context, actor *domain.StaffMember) ([]domain.AutomationRule, error) {
	if actor == nil || (actor.Role != domain.StaffRoleAdmin && actor.Role != domain.StaffRoleTeamLead) {
		return nil, util.NewForbidden("insufficient role")
	}
	if actor.Role == domain.StaffRoleTeamLead {
		rules, err := s.rules.ListForScope(ctx, actor.TeamID)
		if err != nil {
			return nil, util.MapError(err)
		}
		return rules, nil
	}
	rules, err := s.rules.ListAll(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	return rules, nil
}

// CreatePolicy stores an SLA policy.
func (s *AutomationService) CreatePolicy(ctx context.Context, actor *domain.StaffMember, policy *domain.SlaPolicy) (*domain.SlaPolicy, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if policy.FirstResponseTarget <= 0 || policy.ResolutionTarget <= 0 {
		return nil, util.NewValidationError("SLA targets must be positive", nil)
	}
	if policy.Priority != nil && policy.Priority.Rank() > 4 {
		return nil, util.NewValidationError("unknown priority", map[string]any{"priority": *policy.Priority})
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, util.MapError(err)
	}
	return policy, nil
}

// ListPolicies returns all SLA policies.
func (s *AutomationService) ListPolicies(ctx context.Context, actor *domain.StaffMember) ([]domain.SlaPolicy, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	policies, err := s.policies.ListAll(ctx)
	if err != nil {
		return nil, util.MapError(err)
	}
	return policies, nil
}

var validOperators = map[domain.ConditionOperator]struct{}{
	domain.OperatorContains:   {},
	domain.OperatorEquals:     {},
	domain.OperatorNotEquals:  {},
	domain.OperatorIn:         {},
	domain.OperatorNotIn:      {},
	domain.OperatorIsEmpty:    {},
	domain.OperatorIsNotEmpty: {},
}

var validFields = map[domain.ConditionField]struct{}{
	domain.FieldStatus:      {},
	domain.FieldPriority:    {},
	domain.FieldTeamID:      {},
	domain.FieldCategoryID:  {},
	domain.FieldAssigneeID:  {},
	domain.FieldTitle:       {},
	domain.FieldDescription: {},
	domain.FieldTags:        {},
}

func validateRule(rule *domain.AutomationRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return util.NewValidationError("rule name required", nil)
	}
	for i, cond := range rule.Conditions {
		if _, ok := validFields[cond.Field]; !ok {
			return util.NewValidationError("unknown condition field", map[string]any{"index": i, "field": cond.Field})
		}
		if _, ok := validOperators[cond.Operator]; !ok {
			return util.NewValidationError("unknown condition operator", map[string]any{"index": i, "operator": cond.Operator})
		}
		switch cond.Operator {
		case domain.OperatorIn, domain.OperatorNotIn:
			if len(cond.Values) == 0 {
				return util.NewValidationError("set operator requires values", map[string]any{"index": i})
			}
		case domain.OperatorContains:
			if strings.TrimSpace(cond.Value) == "" {
				return util.NewValidationError("contains requires a value", map[string]any{"index": i})
			}
		}
	}
	if len(rule.Actions) == 0 {
		return util.NewValidationError("rule needs at least one action", nil)
	}
	for i, action := range rule.Actions {
		if err := validateAction(i, action); err != nil {
			return err
		}
	}
	return nil
}

func validateAction(index int, action domain.AutomationAction) error {
	switch action.Type {
	case domain.ActionSetStatus:
		if action.Params["status"] == "" {
			return util.NewValidationError("SET_STATUS requires status param", map[string]any{"index": index})
		}
	case domain.ActionAssign:
		if action.Params["staff_id"] == "" {
			return util.NewValidationError("ASSIGN requires staff_id param", map[string]any{"index": index})
		}
	case domain.ActionTransferTeam:
		if action.Params["team_id"] == "" {
			return util.NewValidationError("TRANSFER_TEAM requires team_id param", map[string]any{"index": index})
		}
	case domain.ActionSetPriority:
		if domain.TicketPriority(action.Params["priority"]).Rank() > 4 {
			return util.NewValidationError("SET_PRIORITY requires a known priority", map[string]any{"index": index})
		}
	case domain.ActionNotify:
	default:
		return util.NewValidationError("unknown action type", map[string]any{"index": index, "type": action.Type})
	}
	return nil
}
