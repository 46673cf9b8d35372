package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// SLAPolicyRepository stores SLA reference data. It satisfies
// sla.PolicySource.
type SLAPolicyRepository interface {
	PolicyFor(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error)
	List(ctx context.Context) ([]domain.SLAPolicy, error)
	Upsert(ctx context.Context, policy *domain.SLAPolicy) error
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository constructs repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

func (r *slaPolicyRepository) PolicyFor(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	const query = `
        SELECT id, priority, first_response_minutes, resolve_minutes, business_hours_id
        FROM sla_policies WHERE priority=$1`
	var p domain.SLAPolicy
	err := r.pool.QueryRow(ctx, query, priority).Scan(
		&p.ID,
		&p.Priority,
		&p.FirstResponseMinutes,
		&p.ResolveMinutes,
		&p.BusinessHoursID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *slaPolicyRepository) List(ctx context.Context) ([]domain.SLAPolicy, error) {
	const query = `
        SELECT id, priority, first_response_minutes, resolve_minutes, business_hours_id
        FROM sla_policies ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.SLAPolicy{}
	for rows.Next() {
		var p domain.SLAPolicy
		if err := rows.Scan(&p.ID, &p.Priority, &p.FirstResponseMinutes, &p.ResolveMinutes, &p.BusinessHoursID); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *slaPolicyRepository) Upsert(ctx context.Context, policy *domain.SLAPolicy) error {
	const query = `
        INSERT INTO sla_policies (id, priority, first_response_minutes, resolve_minutes, business_hours_id)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (id) DO UPDATE SET priority=EXCLUDED.priority,
            first_response_minutes=EXCLUDED.first_response_minutes,
            resolve_minutes=EXCLUDED.resolve_minutes,
            business_hours_id=EXCLUDED.business_hours_id`
	_, err := r.pool.Exec(ctx, query,
		policy.ID,
		policy.Priority,
		policy.FirstResponseMinutes,
		policy.ResolveMinutes,
		policy.BusinessHoursID,
	)
	return err
}
