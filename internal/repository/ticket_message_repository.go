package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// TicketMessageRepository manages ticket thread messages.
type TicketMessageRepository interface {
	// Append stores msg and events atomically. When ticket is non-nil the
	// columns named by patch are written in the same transaction.
	Append(ctx context.Context, msg *domain.TicketMessage, ticket *domain.Ticket, patch TicketPatch, expectedVersion int, events []domain.TicketEvent) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Append(ctx context.Context, msg *domain.TicketMessage, ticket *domain.Ticket, patch TicketPatch, expectedVersion int, events []domain.TicketEvent) error {
	attachments, err := json.Marshal(nonNilAttachments(msg.Attachments))
	if err != nil {
		return err
	}
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if ticket != nil && !patch.Empty() {
			if err := updateTicketTx(ctx, tx, ticket, patch, expectedVersion); err != nil {
				return err
			}
		}
		const query = `
        INSERT INTO ticket_messages (id, ticket_id, kind, channel, body, html, attachments, created_by, created_at,
            email_message_id, email_references)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
		if _, err := tx.Exec(ctx, query,
			msg.ID,
			msg.TicketID,
			msg.Kind,
			msg.Channel,
			msg.Body,
			msg.HTML,
			attachments,
			msg.CreatedBy,
			msg.CreatedAt,
			msg.EmailMessageID,
			nonNilStrings(msg.EmailReferences),
		); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, kind, channel, body, html, attachments, created_by, created_at,
               email_message_id, email_references
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketMessage{}
	for rows.Next() {
		var (
			msg         domain.TicketMessage
			attachments []byte
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.Kind,
			&msg.Channel,
			&msg.Body,
			&msg.HTML,
			&attachments,
			&msg.CreatedBy,
			&msg.CreatedAt,
			&msg.EmailMessageID,
			&msg.EmailReferences,
		); err != nil {
			return nil, err
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
				return nil, err
			}
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func nonNilAttachments(values []domain.Attachment) []domain.Attachment {
	if values == nil {
		return []domain.Attachment{}
	}
	return values
}
