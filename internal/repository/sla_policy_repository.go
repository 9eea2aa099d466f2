package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// SlaPolicyRepository stores SLA target policies and resolves the applicable
// one for a scope. It implements sla.PolicyResolver.
type SlaPolicyRepository interface {
	sla.PolicyResolver
	Create(ctx context.Context, policy *domain.SlaPolicy) error
	ListAll(ctx context.Context) ([]domain.SlaPolicy, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSlaPolicyRepository instantiates repository.
func NewSlaPolicyRepository(pool *pgxpool.Pool) SlaPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

const policyColumns = `id, team_id, category_id, priority, first_response_target_ms, resolution_target_ms, created_at, updated_at`

func (r *slaPolicyRepository) Create(ctx context.Context, policy *domain.SlaPolicy) error {
	const query = `
        INSERT INTO sla_policies (team_id, category_id, priority, first_response_target_ms, resolution_target_ms)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		policy.TeamID,
		policy.CategoryID,
		policy.Priority,
		policy.FirstResponseTarget.Milliseconds(),
		policy.ResolutionTarget.Milliseconds(),
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
}

// Resolve walks from the most to the least specific scope: (team, category,
// priority), then (team, priority), then (priority), then the default row
// with no dimensions. A miss at every level is POLICY_NOT_FOUND; callers let
// the ticket operation proceed without windows.
func (r *slaPolicyRepository) Resolve(ctx context.Context, scope sla.PolicyScope) (*domain.SlaPolicy, error) {
	steps := []struct {
		teamID     *string
		categoryID *string
		priority   *domain.TicketPriority
	}{
		{scope.TeamID, scope.CategoryID, &scope.Priority},
		{scope.TeamID, nil, &scope.Priority},
		{nil, nil, &scope.Priority},
		{nil, nil, nil},
	}
	for _, step := range steps {
		policy, err := r.lookup(ctx, step.teamID, step.categoryID, step.priority)
		if err == pgx.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		return policy, nil
	}
	return nil, util.NewPolicyNotFound(map[string]any{
		"team_id":     scope.TeamID,
		"category_id": scope.CategoryID,
		"priority":    scope.Priority,
	})
}

func (r *slaPolicyRepository) lookup(ctx context.Context, teamID, categoryID *string, priority *domain.TicketPriority) (*domain.SlaPolicy, error) {
	query := `SELECT ` + policyColumns + `
        FROM sla_policies
        WHERE team_id IS NOT DISTINCT FROM $1
          AND category_id IS NOT DISTINCT FROM $2
          AND priority IS NOT DISTINCT FROM $3
        LIMIT 1`
	return scanPolicy(r.pool.QueryRow(ctx, query, teamID, categoryID, priority))
}

func (r *slaPolicyRepository) ListAll(ctx context.Context) ([]domain.SlaPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SlaPolicy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *policy)
	}
	return result, rows.Err()
}

func scanPolicy(row pgx.Row) (*domain.SlaPolicy, error) {
	var policy domain.SlaPolicy
	var firstResponseMs, resolutionMs int64
	if err := row.Scan(
		&policy.ID,
		&policy.TeamID,
		&policy.CategoryID,
		&policy.Priority,
		&firstResponseMs,
		&resolutionMs,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	policy.FirstResponseTarget = time.Duration(firstResponseMs) * time.Millisecond
	policy.ResolutionTarget = time.Duration(resolutionMs) * time.Millisecond
	return &policy, nil
}
