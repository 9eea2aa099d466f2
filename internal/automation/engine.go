package automation

import (
	"sort"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// RuleMatch records one matched rule and the actions it contributed.
type RuleMatch struct {
	Rule    domain.AutomationRule
	Actions []domain.PlannedAction
}

// Evaluation is the result of evaluating a rule set against a ticket.
type Evaluation struct {
	Matches []RuleMatch
}

// Actions flattens matched actions in evaluation order.
func (e Evaluation) Actions() []domain.PlannedAction {
	var out []domain.PlannedAction
	for _, match := range e.Matches {
		out = append(out, match.Actions...)
	}
	return out
}

// Evaluate runs the rule set against a ticket snapshot following a change
// event. Pure: it produces the actions to apply but executes nothing.
//
// Disabled rules are skipped. Rules evaluate in (priority, id) order, each
// independently: a ticket matching several rules collects all their actions
// in rule order. A rule matches iff every condition matches; a rule with no
// conditions matches every ticket.
func Evaluate(change events.EventType, ticket *domain.Ticket, rules []domain.AutomationRule) Evaluation {
	_ = change // rules currently fire on every change event

	ordered := make([]domain.AutomationRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Enabled {
			ordered = append(ordered, rule)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	var eval Evaluation
	for _, rule := range ordered {
		if !allConditionsMatch(rule, ticket) {
			continue
		}
		match := RuleMatch{Rule: rule}
		for _, action := range rule.Actions {
			match.Actions = append(match.Actions, domain.PlannedAction{
				RuleID: rule.ID,
				Action: action,
			})
		}
		eval.Matches = append(eval.Matches, match)
	}
	return eval
}

func allConditionsMatch(rule domain.AutomationRule, ticket *domain.Ticket) bool {
	for _, condition := range rule.Conditions {
		if !Matches(condition, ticket) {
			return false
		}
	}
	return true
}
