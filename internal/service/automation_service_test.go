package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

type fakeRuleRepo struct {
	stored map[string]*domain.AutomationRule
}

func newFakeRuleRepo(rules ...*domain.AutomationRule) *fakeRuleRepo {
	repo := &fakeRuleRepo{stored: make(map[string]*domain.AutomationRule)}
	for _, rule := range rules {
		repo.stored[rule.ID] = rule
	}
	return repo
}

func (f *fakeRuleRepo) Create(_ context.Context, rule *domain.AutomationRule) error {
	if rule.ID == "" {
		rule.ID = "rule-new"
	}
	f.stored[rule.ID] = rule
	return nil
}

func (f *fakeRuleRepo) Update(_ context.Context, rule *domain.AutomationRule) error {
	f.stored[rule.ID] = rule
	return nil
}

func (f *fakeRuleRepo) Delete(_ context.Context, id string) error {
	delete(f.stored, id)
	return nil
}

func (f *fakeRuleRepo) GetByID(_ context.Context, id string) (*domain.AutomationRule, error) {
	rule, ok := f.stored[id]
	if !ok {
		return nil, util.NewNotFound("rule", map[string]any{"id": id})
	}
	return rule, nil
}

func (f *fakeRuleRepo) ListForScope(_ context.Context, teamID *string) ([]domain.AutomationRule, error) {
	var result []domain.AutomationRule
	for _, rule := range f.stored {
		if rule.TeamID == nil || (teamID != nil && *rule.TeamID == *teamID) {
			result = append(result, *rule)
		}
	}
	return result, nil
}

func (f *fakeRuleRepo) ListAll(_ context.Context) ([]domain.AutomationRule, error) {
	var result []domain.AutomationRule
	for _, rule := range f.stored {
		result = append(result, *rule)
	}
	return result, nil
}

func strptr(s string) *string { return &s }

func validTestRule(teamID *string) *domain.AutomationRule {
	return &domain.AutomationRule{
		TeamID:  teamID,
		Name:    "escalate P1",
		Enabled: true,
		Conditions: []domain.AutomationCondition{
			{Field: domain.FieldPriority, Operator: domain.OperatorEquals, Value: "P1"},
		},
		Actions: []domain.AutomationAction{
			{Type: domain.ActionNotify, Params: map[string]string{"message": "P1 filed"}},
		},
	}
}

func adminActor() *domain.StaffMember {
	return &domain.StaffMember{ID: "staff-admin", Role: domain.StaffRoleAdmin}
}

func leadActor(teamID string) *domain.StaffMember {
	return &domain.StaffMember{ID: "staff-lead", Role: domain.StaffRoleTeamLead, TeamID: &teamID}
}

func TestCreateRule_AdminAnyScope(t *testing.T) {
	svc := NewAutomationService(newFakeRuleRepo(), nil)

	created, err := svc.CreateRule(context.Background(), adminActor(), validTestRule(nil))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestCreateRule_TeamLeadOwnTeamOnly(t *testing.T) {
	svc := NewAutomationService(newFakeRuleRepo(), nil)
	lead := leadActor("team-a")

	_, err := svc.CreateRule(context.Background(), lead, validTestRule(strptr("team-a")))
	assert.NoError(t, err)

	_, err = svc.CreateRule(context.Background(), lead, validTestRule(strptr("team-b")))
	assert.True(t, util.HasCode(err, util.CodeForbidden))

	// Global scope is admin territory.
	_, err = svc.CreateRule(context.Background(), lead, validTestRule(nil))
	assert.True(t, util.HasCode(err, util.CodeForbidden))
}

func TestCreateRule_AgentForbidden(t *testing.T) {
	svc := NewAutomationService(newFakeRuleRepo(), nil)
	agent := &domain.StaffMember{ID: "staff-1", Role: domain.StaffRoleAgent, TeamID: strptr("team-a")}

	_, err := svc.CreateRule(context.Background(), agent, validTestRule(strptr("team-a")))
	assert.True(t, util.HasCode(err, util.CodeForbidden))
}

func TestUpdateRule_ChecksOldAndNewScope(t *testing.T) {
	existing := validTestRule(strptr("team-a"))
	existing.ID = "rule-1"
	svc := NewAutomationService(newFakeRuleRepo(existing), nil)
	lead := leadActor("team-a")

	// Moving a rule out of the lead's team is rejected even though the
	// current scope is theirs.
	moved := validTestRule(strptr("team-b"))
	moved.ID = "rule-1"
	_, err := svc.UpdateRule(context.Background(), lead, moved)
	assert.True(t, util.HasCode(err, util.CodeForbidden))

	renamed := validTestRule(strptr("team-a"))
	renamed.ID = "rule-1"
	renamed.Name = "escalate urgent"
	updated, err := svc.UpdateRule(context.Background(), lead, renamed)
	require.NoError(t, err)
	assert.Equal(t, "escalate urgent", updated.Name)
}

func TestDeleteRule_NotFound(t *testing.T) {
	svc := NewAutomationService(newFakeRuleRepo(), nil)
	err := svc.DeleteRule(context.Background(), adminActor(), "missing")
	assert.True(t, util.HasCode(err, util.CodeNotFound))
}

func TestListRules_LeadScopedToOwnTeam(t *testing.T) {
	teamRule := validTestRule(strptr("team-a"))
	teamRule.ID = "rule-a"
	otherRule := validTestRule(strptr("team-b"))
	otherRule.ID = "rule-b"
	globalRule := validTestRule(nil)
	globalRule.ID = "rule-g"
	svc := NewAutomationService(newFakeRuleRepo(teamRule, otherRule, globalRule), nil)

	rules, err := svc.ListRules(context.Background(), leadActor("team-a"))
	require.NoError(t, err)
	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		ids = append(ids, rule.ID)
	}
	assert.ElementsMatch(t, []string{"rule-a", "rule-g"}, ids)

	all, err := svc.ListRules(context.Background(), adminActor())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestValidateRule(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*domain.AutomationRule)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *domain.AutomationRule) {}},
		{name: "blank name", mutate: func(r *domain.AutomationRule) { r.Name = "  " }, wantErr: true},
		{name: "no conditions is vacuous match", mutate: func(r *domain.AutomationRule) { r.Conditions = nil }},
		{name: "unknown field", mutate: func(r *domain.AutomationRule) {
			r.Conditions[0].Field = "reporter_mood"
		}, wantErr: true},
		{name: "unknown operator", mutate: func(r *domain.AutomationRule) {
			r.Conditions[0].Operator = "matchesRegex"
		}, wantErr: true},
		{name: "in without values", mutate: func(r *domain.AutomationRule) {
			r.Conditions[0].Operator = domain.OperatorIn
			r.Conditions[0].Values = nil
		}, wantErr: true},
		{name: "notIn with values", mutate: func(r *domain.AutomationRule) {
			r.Conditions[0].Operator = domain.OperatorNotIn
			r.Conditions[0].Values = []string{"P1", "P2"}
		}},
		{name: "contains without value", mutate: func(r *domain.AutomationRule) {
			r.Conditions[0].Field = domain.FieldTitle
			r.Conditions[0].Operator = domain.OperatorContains
			r.Conditions[0].Value = ""
		}, wantErr: true},
		{name: "no actions", mutate: func(r *domain.AutomationRule) { r.Actions = nil }, wantErr: true},
		{name: "set status without param", mutate: func(r *domain.AutomationRule) {
			r.Actions = []domain.AutomationAction{{Type: domain.ActionSetStatus}}
		}, wantErr: true},
		{name: "assign without staff", mutate: func(r *domain.AutomationRule) {
			r.Actions = []domain.AutomationAction{{Type: domain.ActionAssign, Params: map[string]string{}}}
		}, wantErr: true},
		{name: "transfer with team", mutate: func(r *domain.AutomationRule) {
			r.Actions = []domain.AutomationAction{{Type: domain.ActionTransferTeam, Params: map[string]string{"team_id": "team-b"}}}
		}},
		{name: "set priority unknown value", mutate: func(r *domain.AutomationRule) {
			r.Actions = []domain.AutomationAction{{Type: domain.ActionSetPriority, Params: map[string]string{"priority": "P9"}}}
		}, wantErr: true},
		{name: "unknown action type", mutate: func(r *domain.AutomationRule) {
			r.Actions = []domain.AutomationAction{{Type: "DELETE_TICKET"}}
		}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := validTestRule(nil)
			tc.mutate(rule)
			err := validateRule(rule)
			if tc.wantErr {
				assert.True(t, util.HasCode(err, util.CodeValidationFailed), "expected validation error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreatePolicy_Validation(t *testing.T) {
	svc := NewAutomationService(nil, nil)
	admin := adminActor()

	_, err := svc.CreatePolicy(context.Background(), leadActor("team-a"), &domain.SlaPolicy{})
	assert.True(t, util.HasCode(err, util.CodeForbidden))

	_, err = svc.CreatePolicy(context.Background(), admin, &domain.SlaPolicy{})
	assert.True(t, util.HasCode(err, util.CodeValidationFailed), "non-positive targets rejected")

	bad := domain.TicketPriority("P7")
	_, err = svc.CreatePolicy(context.Background(), admin, &domain.SlaPolicy{
		FirstResponseTarget: 1,
		ResolutionTarget:    1,
		Priority:            &bad,
	})
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))
}
