package automation

import (
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// fieldValue is a ticket field snapshot for condition matching. Multi-valued
// fields (tags) carry every value; scalar fields carry at most one.
type fieldValue struct {
	values []string
	text   bool // free-text field, eligible for substring matching
	known  bool
}

// Matches evaluates one condition against a ticket snapshot. It is total and
// fail-closed: unknown fields, unknown operators and type mismatches yield
// "no match" rather than an error, so one malformed rule cannot halt the
// evaluation of the rest.
func Matches(condition domain.AutomationCondition, ticket *domain.Ticket) bool {
	field := extractField(condition.Field, ticket)
	if !field.known {
		return false
	}

	switch condition.Operator {
	case domain.OperatorContains:
		if !field.text || condition.Value == "" {
			return false
		}
		needle := strings.ToLower(condition.Value)
		for _, v := range field.values {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
		return false

	case domain.OperatorEquals:
		for _, v := range field.values {
			if v == condition.Value {
				return true
			}
		}
		return false

	case domain.OperatorNotEquals:
		for _, v := range field.values {
			if v == condition.Value {
				return false
			}
		}
		return true

	case domain.OperatorIn:
		if len(condition.Values) == 0 {
			return false
		}
		for _, member := range condition.Values {
			for _, v := range field.values {
				if v == member {
					return true
				}
			}
		}
		return false

	case domain.OperatorNotIn:
		if len(condition.Values) == 0 {
			return false
		}
		for _, member := range condition.Values {
			for _, v := range field.values {
				if v == member {
					return false
				}
			}
		}
		return true

	case domain.OperatorIsEmpty:
		return len(field.values) == 0

	case domain.OperatorIsNotEmpty:
		return len(field.values) > 0

	default:
		return false
	}
}

func extractField(field domain.ConditionField, ticket *domain.Ticket) fieldValue {
	switch field {
	case domain.FieldStatus:
		return scalar(string(ticket.Status), false)
	case domain.FieldPriority:
		return scalar(string(ticket.Priority), false)
	case domain.FieldTeamID:
		return optional(ticket.TeamID)
	case domain.FieldCategoryID:
		return scalar(ticket.CategoryID, false)
	case domain.FieldAssigneeID:
		return optional(ticket.AssigneeID)
	case domain.FieldTitle:
		return scalar(ticket.Title, true)
	case domain.FieldDescription:
		return scalar(ticket.Description, true)
	case domain.FieldTags:
		return fieldValue{values: ticket.Tags, text: true, known: true}
	default:
		return fieldValue{}
	}
}

func scalar(value string, text bool) fieldValue {
	fv := fieldValue{text: text, known: true}
	if value != "" {
		fv.values = []string{value}
	}
	return fv
}

func optional(value *string) fieldValue {
	fv := fieldValue{known: true}
	if value != nil && *value != "" {
		fv.values = []string{*value}
	}
	return fv
}
