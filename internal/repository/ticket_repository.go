package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// ErrVersionMismatch is returned by Update when expectedVersion no longer
// matches the stored row.
var ErrVersionMismatch = errors.New("ticket version mismatch")

// TicketRepository encapsulates ticket persistence. Every write carries the
// events describing it; both are committed in one transaction.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket, events []domain.TicketEvent) error
	// Update writes only the columns named by patch; ticket is refreshed
	// from the stored row afterwards.
	Update(ctx context.Context, ticket *domain.Ticket, patch TicketPatch, expectedVersion int, events []domain.TicketEvent) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.org_id, t.subject, t.description, t.type, t.channel, t.status, t.priority,
        t.owner_id, t.team, t.sla_id, t.sla_due, t.company_id, t.contact_id, t.order_id, t.quote_id,
        t.created_by, t.email_references, t.version, t.created_at, t.updated_at, t.first_response_at, t.closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, events []domain.TicketEvent) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
        INSERT INTO tickets (id, org_id, subject, description, type, channel, status, priority,
            owner_id, team, sla_id, sla_due, company_id, contact_id, order_id, quote_id,
            created_by, email_references, version, created_at, updated_at, first_response_at, closed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`
		if _, err := tx.Exec(ctx, query,
			ticket.ID,
			ticket.OrgID,
			ticket.Subject,
			ticket.Description,
			ticket.Type,
			ticket.Channel,
			ticket.Status,
			ticket.Priority,
			ticket.OwnerID,
			ticket.Team,
			ticket.SLAID,
			ticket.SLADue,
			ticket.CompanyID,
			ticket.ContactID,
			ticket.OrderID,
			ticket.QuoteID,
			ticket.CreatedBy,
			nonNilStrings(ticket.EmailReferences),
			ticket.Version,
			ticket.CreatedAt,
			ticket.UpdatedAt,
			ticket.FirstResponseAt,
			ticket.ClosedAt,
		); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, patch TicketPatch, expectedVersion int, events []domain.TicketEvent) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := updateTicketTx(ctx, tx, ticket, patch, expectedVersion); err != nil {
			return err
		}
		return insertEvents(ctx, tx, events)
	})
}

// updateTicketTx writes the patched columns, bumps version and reloads
// ticket from the stored row. A non-zero expectedVersion turns the write
// into a compare-and-set.
func updateTicketTx(ctx context.Context, tx pgx.Tx, ticket *domain.Ticket, patch TicketPatch, expectedVersion int) error {
	set, args := patch.setClause(ticket)
	args = append(args, ticket.ID)
	query := fmt.Sprintf(`UPDATE tickets t SET %s WHERE t.id=$%d`, set, len(args))
	if expectedVersion > 0 {
		args = append(args, expectedVersion)
		query += fmt.Sprintf(" AND t.version=$%d", len(args))
	}
	query += " RETURNING " + ticketColumns

	stored, err := scanTicket(tx.QueryRow(ctx, query, args...))
	if err == nil {
		*ticket = *stored
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || expectedVersion <= 0 {
		return err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return ErrVersionMismatch
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	filter.Normalize()
	where, args := filter.whereClause()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets t WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		ticketColumns, where, filter.orderClause(), filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OrgID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Type,
		&ticket.Channel,
		&ticket.Status,
		&ticket.Priority,
		&ticket.OwnerID,
		&ticket.Team,
		&ticket.SLAID,
		&ticket.SLADue,
		&ticket.CompanyID,
		&ticket.ContactID,
		&ticket.OrderID,
		&ticket.QuoteID,
		&ticket.CreatedBy,
		&ticket.EmailReferences,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
