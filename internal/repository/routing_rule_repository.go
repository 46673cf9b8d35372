package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// RoutingRuleRepository manages persistence for routing rules.
type RoutingRuleRepository interface {
	List(ctx context.Context) ([]domain.RoutingRule, error)
	Upsert(ctx context.Context, rule *domain.RoutingRule) error
}

type routingRuleRepository struct {
	pool *pgxpool.Pool
}

// NewRoutingRuleRepository constructs repository.
func NewRoutingRuleRepository(pool *pgxpool.Pool) RoutingRuleRepository {
	return &routingRuleRepository{pool: pool}
}

func (r *routingRuleRepository) List(ctx context.Context) ([]domain.RoutingRule, error) {
	const query = `
        SELECT id, name, conditions, actions, order_index, is_active
        FROM routing_rules ORDER BY order_index ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.RoutingRule{}
	for rows.Next() {
		var (
			rule                domain.RoutingRule
			conditions, actions []byte
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &conditions, &actions, &rule.OrderIndex, &rule.IsActive); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *routingRuleRepository) Upsert(ctx context.Context, rule *domain.RoutingRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO routing_rules (id, name, conditions, actions, order_index, is_active)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, conditions=EXCLUDED.conditions,
            actions=EXCLUDED.actions, order_index=EXCLUDED.order_index, is_active=EXCLUDED.is_active`
	_, err = r.pool.Exec(ctx, query, rule.ID, rule.Name, conditions, actions, rule.OrderIndex, rule.IsActive)
	return err
}
