package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// ticketAccess loads tickets on behalf of a principal, applying the
// permission check and ticket visibility in one place.
type ticketAccess struct {
	tickets  repository.TicketRepository
	watchers repository.TicketWatcherRepository
}

func (a ticketAccess) load(ctx context.Context, p *domain.Principal, ticketID, permission string) (*domain.Ticket, error) {
	if p == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if !auth.HasPermission(p, permission) {
		return nil, apperrors.NewForbidden("missing permission " + permission)
	}
	ticket, err := a.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if err != nil {
		return nil, err
	}
	if auth.CanAccessTicket(p, ticket, false) {
		return ticket, nil
	}
	if ticket.OrgID == p.OrgID && a.watchers != nil {
		watching, err := a.watchers.Exists(ctx, ticket.ID, p.UserID)
		if err != nil {
			return nil, err
		}
		if auth.CanAccessTicket(p, ticket, watching) {
			return ticket, nil
		}
	}
	return nil, apperrors.NewForbidden("no access to ticket")
}

func requirePermission(p *domain.Principal, permission string) error {
	if p == nil {
		return apperrors.ErrUnauthenticated
	}
	if !auth.HasPermission(p, permission) {
		return apperrors.NewForbidden("missing permission " + permission)
	}
	return nil
}

func newEvent(t *domain.Ticket, typ domain.EventType, data map[string]any, p *domain.Principal, at time.Time) domain.TicketEvent {
	evt := domain.TicketEvent{
		ID:        uuid.NewString(),
		TicketID:  t.ID,
		OrgID:     t.OrgID,
		Type:      typ,
		Data:      data,
		CreatedAt: at,
	}
	if p != nil {
		userID := p.UserID
		evt.UserID = &userID
	}
	return evt
}

func change(from, to any) map[string]any {
	return map[string]any{"from": from, "to": to}
}

// nullable renders an optional string for event payloads.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
