package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// ErrDuplicate reports a unique key violation.
var ErrDuplicate = errors.New("duplicate key")

const uniqueViolation = "23505"

// TicketWatcherRepository manages ticket watchers.
type TicketWatcherRepository interface {
	Add(ctx context.Context, watcher *domain.TicketWatcher, event domain.TicketEvent) error
	Remove(ctx context.Context, ticketID, userID string, event domain.TicketEvent) error
	Exists(ctx context.Context, ticketID, userID string) (bool, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketWatcher, error)
}

type ticketWatcherRepository struct {
	pool *pgxpool.Pool
}

// NewTicketWatcherRepository builds repository.
func NewTicketWatcherRepository(pool *pgxpool.Pool) TicketWatcherRepository {
	return &ticketWatcherRepository{pool: pool}
}

func (r *ticketWatcherRepository) Add(ctx context.Context, watcher *domain.TicketWatcher, event domain.TicketEvent) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
        INSERT INTO ticket_watchers (ticket_id, user_id, created_by, created_at)
        VALUES ($1,$2,$3,$4)`
		if _, err := tx.Exec(ctx, query, watcher.TicketID, watcher.UserID, watcher.CreatedBy, watcher.CreatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrDuplicate
			}
			return err
		}
		return insertEvents(ctx, tx, []domain.TicketEvent{event})
	})
}

func (r *ticketWatcherRepository) Remove(ctx context.Context, ticketID, userID string, event domain.TicketEvent) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM ticket_watchers WHERE ticket_id=$1 AND user_id=$2`, ticketID, userID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return insertEvents(ctx, tx, []domain.TicketEvent{event})
	})
}

func (r *ticketWatcherRepository) Exists(ctx context.Context, ticketID, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ticket_watchers WHERE ticket_id=$1 AND user_id=$2)`,
		ticketID, userID,
	).Scan(&exists)
	return exists, err
}

func (r *ticketWatcherRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketWatcher, error) {
	const query = `
        SELECT ticket_id, user_id, created_by, created_at
        FROM ticket_watchers WHERE ticket_id=$1 ORDER BY created_at ASC, user_id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketWatcher{}
	for rows.Next() {
		var w domain.TicketWatcher
		if err := rows.Scan(&w.TicketID, &w.UserID, &w.CreatedBy, &w.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
