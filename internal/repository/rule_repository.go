package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RuleRepository persists automation rules. Conditions and actions are
// stored as JSON documents on the rule row.
type RuleRepository interface {
	Create(ctx context.Context, rule *domain.AutomationRule) error
	Update(ctx context.Context, rule *domain.AutomationRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.AutomationRule, error)
	// ListForScope returns enabled rules for the team plus global rules
	// (nil team), ordered by (priority, id).
	ListForScope(ctx context.Context, teamID *string) ([]domain.AutomationRule, error)
	ListAll(ctx context.Context) ([]domain.AutomationRule, error)
}

type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository instantiates repository.
func NewRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepository{pool: pool}
}

const ruleColumns = `id, team_id, name, priority, enabled, conditions, actions, created_at, updated_at`

func (r *ruleRepository) Create(ctx context.Context, rule *domain.AutomationRule) error {
	conditions, actions, err := marshalRule(rule)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO automation_rules (team_id, name, priority, enabled, conditions, actions)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.TeamID,
		rule.Name,
		rule.Priority,
		rule.Enabled,
		conditions,
		actions,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *ruleRepository) Update(ctx context.Context, rule *domain.AutomationRule) error {
	conditions, actions, err := marshalRule(rule)
	if err != nil {
		return err
	}
	const query = `
        UPDATE automation_rules SET team_id=$1, name=$2, priority=$3, enabled=$4, conditions=$5, actions=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		rule.TeamID,
		rule.Name,
		rule.Priority,
		rule.Enabled,
		conditions,
		actions,
		rule.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ruleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM automation_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ruleRepository) GetByID(ctx context.Context, id string) (*domain.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE id=$1`
	return scanRule(r.pool.QueryRow(ctx, query, id))
}

func (r *ruleRepository) ListForScope(ctx context.Context, teamID *string) ([]domain.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + `
        FROM automation_rules
        WHERE enabled=TRUE AND (team_id IS NULL`
	args := []any{}
	if teamID != nil {
		args = append(args, *teamID)
		query += ` OR team_id=$1`
	}
	query += `) ORDER BY priority ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *ruleRepository) ListAll(ctx context.Context) ([]domain.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules ORDER BY priority ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func marshalRule(rule *domain.AutomationRule) ([]byte, []byte, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, err
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, err
	}
	return conditions, actions, nil
}

func scanRule(row pgx.Row) (*domain.AutomationRule, error) {
	var rule domain.AutomationRule
	var conditions, actions []byte
	if err := row.Scan(
		&rule.ID,
		&rule.TeamID,
		&rule.Name,
		&rule.Priority,
		&rule.Enabled,
		&conditions,
		&actions,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(actions, &rule.Actions); err != nil {
		return nil, err
	}
	return &rule, nil
}

func scanRules(rows pgx.Rows) ([]domain.AutomationRule, error) {
	var result []domain.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	return result, rows.Err()
}
