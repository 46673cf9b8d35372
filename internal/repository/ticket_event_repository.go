package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// TicketEventRepository reads the audit log and drives the outbox.
type TicketEventRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEvent, error)
	ListUnpublished(ctx context.Context, limit int) ([]domain.TicketEvent, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

type ticketEventRepository struct {
	pool *pgxpool.Pool
}

// NewTicketEventRepository builds repository.
func NewTicketEventRepository(pool *pgxpool.Pool) TicketEventRepository {
	return &ticketEventRepository{pool: pool}
}

const eventColumns = `id, ticket_id, org_id, event_type, data, user_id, created_at, published_at`

func (r *ticketEventRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM ticket_events WHERE ticket_id=$1 ORDER BY seq ASC`
	return r.query(ctx, query, ticketID)
}

func (r *ticketEventRepository) ListUnpublished(ctx context.Context, limit int) ([]domain.TicketEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + eventColumns + ` FROM ticket_events WHERE published_at IS NULL ORDER BY seq ASC LIMIT $1`
	return r.query(ctx, query, limit)
}

func (r *ticketEventRepository) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE ticket_events SET published_at=$1 WHERE id = ANY($2)`, at, ids)
	return err
}

func (r *ticketEventRepository) query(ctx context.Context, query string, args ...any) ([]domain.TicketEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketEvent{}
	for rows.Next() {
		var (
			evt  domain.TicketEvent
			data []byte
		)
		if err := rows.Scan(
			&evt.ID,
			&evt.TicketID,
			&evt.OrgID,
			&evt.Type,
			&data,
			&evt.UserID,
			&evt.CreatedAt,
			&evt.PublishedAt,
		); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &evt.Data); err != nil {
				return nil, err
			}
		}
		result = append(result, evt)
	}
	return result, rows.Err()
}

// insertEvents appends audit rows inside an open transaction. Order in the
// slice is preserved through the seq column.
func insertEvents(ctx context.Context, tx pgx.Tx, events []domain.TicketEvent) error {
	const query = `
        INSERT INTO ticket_events (id, ticket_id, org_id, event_type, data, user_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, evt := range events {
		data, err := json.Marshal(evt.Data)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query,
			evt.ID,
			evt.TicketID,
			evt.OrgID,
			evt.Type,
			data,
			evt.UserID,
			evt.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing on success.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
