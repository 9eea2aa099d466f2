package domain

import "time"

// ConditionOperator enumerates supported comparison operators.
type ConditionOperator string

const (
	OperatorContains   ConditionOperator = "contains"
	OperatorEquals     ConditionOperator = "equals"
	OperatorNotEquals  ConditionOperator = "notEquals"
	OperatorIn         ConditionOperator = "in"
	OperatorNotIn      ConditionOperator = "notIn"
	OperatorIsEmpty    ConditionOperator = "isEmpty"
	OperatorIsNotEmpty ConditionOperator = "isNotEmpty"
)

// ConditionField enumerates ticket fields rules may inspect.
type ConditionField string

const (
	FieldStatus      ConditionField = "status"
	FieldPriority    ConditionField = "priority"
	FieldTeamID      ConditionField = "team_id"
	FieldCategoryID  ConditionField = "category_id"
	FieldAssigneeID  ConditionField = "assignee_id"
	FieldTitle       ConditionField = "title"
	FieldDescription ConditionField = "description"
	FieldTags        ConditionField = "tags"
)

// AutomationCondition is a single field/operator/value predicate. Values is
// used by set operators (in/notIn), Value by the scalar ones.
type AutomationCondition struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value,omitempty"`
	Values   []string          `json:"values,omitempty"`
}

// ActionType enumerates automation action kinds.
type ActionType string

const (
	ActionSetStatus    ActionType = "SET_STATUS"
	ActionAssign       ActionType = "ASSIGN"
	ActionTransferTeam ActionType = "TRANSFER_TEAM"
	ActionSetPriority  ActionType = "SET_PRIORITY"
	ActionNotify       ActionType = "NOTIFY"
)

// AutomationAction is an effect to apply when a rule matches.
type AutomationAction struct {
	Type   ActionType        `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// AutomationRule is a condition set plus an action list, evaluated on ticket
// change events. Conditions are AND-combined; a rule with no conditions
// matches every ticket.
type AutomationRule struct {
	ID         string
	TeamID     *string
	Name       string
	Priority   int
	Enabled    bool
	Conditions []AutomationCondition
	Actions    []AutomationAction
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlannedAction is an action produced by rule evaluation, tagged with the
// rule that produced it for traceability.
type PlannedAction struct {
	RuleID string
	Action AutomationAction
}
