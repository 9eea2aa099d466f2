package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// SlaWindowRepository persists SLA windows. A ticket keeps one live window
// per kind; frozen windows from before a reopen are retained for reporting.
type SlaWindowRepository interface {
	Create(ctx context.Context, window *domain.SlaWindow) error
	Update(ctx context.Context, window *domain.SlaWindow) error
	GetCurrent(ctx context.Context, ticketID string, kind domain.SlaWindowKind) (*domain.SlaWindow, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.SlaWindow, error)
	ListRunning(ctx context.Context, limit int) ([]domain.SlaWindow, error)
}

type slaWindowRepository struct {
	pool *pgxpool.Pool
}

// NewSlaWindowRepository instantiates repository.
func NewSlaWindowRepository(pool *pgxpool.Pool) SlaWindowRepository {
	return &slaWindowRepository{pool: pool}
}

const windowColumns = `id, ticket_id, kind, target_ms, accumulated_active_ms, last_resumed_at, state, created_at, updated_at, version`

func (r *slaWindowRepository) Create(ctx context.Context, window *domain.SlaWindow) error {
	const query = `
        INSERT INTO sla_windows (ticket_id, kind, target_ms, accumulated_active_ms, last_resumed_at, state)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at, version`
	return r.pool.QueryRow(ctx, query,
		window.TicketID,
		window.Kind,
		window.TargetDuration.Milliseconds(),
		window.AccumulatedActive.Milliseconds(),
		window.LastResumedAt,
		window.State,
	).Scan(&window.ID, &window.CreatedAt, &window.UpdatedAt, &window.Version)
}

// Update persists the window guarded by its version so the sweep cannot race
// a concurrent status transition on the same ticket.
func (r *slaWindowRepository) Update(ctx context.Context, window *domain.SlaWindow) error {
	const query = `
        UPDATE sla_windows SET target_ms=$1, accumulated_active_ms=$2, last_resumed_at=$3, state=$4,
            updated_at=NOW(), version=version+1
        WHERE id=$5 AND version=$6
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		window.TargetDuration.Milliseconds(),
		window.AccumulatedActive.Milliseconds(),
		window.LastResumedAt,
		window.State,
		window.ID,
		window.Version,
	).Scan(&window.Version, &window.UpdatedAt)
	if err == pgx.ErrNoRows {
		return util.NewConflict("sla window modified concurrently", map[string]any{"window_id": window.ID})
	}
	return err
}

// GetCurrent returns the most recent window of the given kind for a ticket.
func (r *slaWindowRepository) GetCurrent(ctx context.Context, ticketID string, kind domain.SlaWindowKind) (*domain.SlaWindow, error) {
	query := `SELECT ` + windowColumns + `
        FROM sla_windows WHERE ticket_id=$1 AND kind=$2
        ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, query, ticketID, kind))
}

func (r *slaWindowRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.SlaWindow, error) {
	query := `SELECT ` + windowColumns + `
        FROM sla_windows WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// ListRunning returns windows still on the clock, oldest first, for the
// breach sweep.
func (r *slaWindowRepository) ListRunning(ctx context.Context, limit int) ([]domain.SlaWindow, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + windowColumns + `
        FROM sla_windows WHERE state=$1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, domain.SlaStateRunning, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *slaWindowRepository) scanOne(row pgx.Row) (*domain.SlaWindow, error) {
	var window domain.SlaWindow
	var targetMs, accumulatedMs int64
	if err := row.Scan(
		&window.ID,
		&window.TicketID,
		&window.Kind,
		&targetMs,
		&accumulatedMs,
		&window.LastResumedAt,
		&window.State,
		&window.CreatedAt,
		&window.UpdatedAt,
		&window.Version,
	); err != nil {
		return nil, err
	}
	window.TargetDuration = time.Duration(targetMs) * time.Millisecond
	window.AccumulatedActive = time.Duration(accumulatedMs) * time.Millisecond
	return &window, nil
}

func (r *slaWindowRepository) scanMany(rows pgx.Rows) ([]domain.SlaWindow, error) {
	var result []domain.SlaWindow
	for rows.Next() {
		window, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *window)
	}
	return result, rows.Err()
}
