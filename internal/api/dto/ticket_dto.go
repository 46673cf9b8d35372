package dto

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// Response is the success envelope. Warnings lists soft failures of an
// operation that still committed.
type Response struct {
	Data     any                 `json:"data"`
	Warnings []apperrors.Warning `json:"warnings,omitempty"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject   string                `json:"subject"`
	Body      string                `json:"body"`
	Type      domain.TicketType     `json:"type"`
	Priority  domain.TicketPriority `json:"priority"`
	Channel   domain.Channel        `json:"channel"`
	CompanyID *string               `json:"company_id"`
	ContactID *string               `json:"contact_id"`
	OrderID   *string               `json:"order_id"`
	QuoteID   *string               `json:"quote_id"`
	Team      *string               `json:"team"`
}

// UpdateTicketRequest is a partial update. owner_id and team accept an
// explicit null to clear them.
type UpdateTicketRequest struct {
	Status          *domain.TicketStatus   `json:"status"`
	Priority        *domain.TicketPriority `json:"priority"`
	OwnerID         domain.NullableString  `json:"owner_id"`
	Team            domain.NullableString  `json:"team"`
	Subject         *string                `json:"subject"`
	Type            *domain.TicketType     `json:"type"`
	ExpectedVersion *int                   `json:"expected_version"`
}

// TicketResponse is the wire shape of a ticket. SLABreached is derived at
// read time.
type TicketResponse struct {
	ID              string                `json:"id"`
	OrgID           string                `json:"org_id"`
	Subject         string                `json:"subject"`
	Description     string                `json:"description"`
	Type            domain.TicketType     `json:"type"`
	Channel         domain.Channel        `json:"channel"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	OwnerID         *string               `json:"owner_id"`
	Team            *string               `json:"team"`
	SLAID           *string               `json:"sla_id"`
	SLADue          *time.Time            `json:"sla_due"`
	SLABreached     bool                  `json:"sla_breached"`
	CompanyID       *string               `json:"company_id"`
	ContactID       *string               `json:"contact_id"`
	OrderID         *string               `json:"order_id"`
	QuoteID         *string               `json:"quote_id"`
	CreatedBy       string                `json:"created_by"`
	Version         int                   `json:"version"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	FirstResponseAt *time.Time            `json:"first_response_at"`
	ClosedAt        *time.Time            `json:"closed_at"`
}

// Ticket maps a domain ticket, evaluating the breach flag at now.
func Ticket(t *domain.Ticket, now time.Time) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		OrgID:           t.OrgID,
		Subject:         t.Subject,
		Description:     t.Description,
		Type:            t.Type,
		Channel:         t.Channel,
		Status:          t.Status,
		Priority:        t.Priority,
		OwnerID:         t.OwnerID,
		Team:            t.Team,
		SLAID:           t.SLAID,
		SLADue:          t.SLADue,
		SLABreached:     t.SLABreached(now),
		CompanyID:       t.CompanyID,
		ContactID:       t.ContactID,
		OrderID:         t.OrderID,
		QuoteID:         t.QuoteID,
		CreatedBy:       t.CreatedBy,
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		FirstResponseAt: t.FirstResponseAt,
		ClosedAt:        t.ClosedAt,
	}
}

// Tickets maps a page of tickets.
func Tickets(items []domain.Ticket, now time.Time) []TicketResponse {
	out := make([]TicketResponse, 0, len(items))
	for i := range items {
		out = append(out, Ticket(&items[i], now))
	}
	return out
}

// EventResponse is an audit log entry.
type EventResponse struct {
	ID          string           `json:"id"`
	TicketID    string           `json:"ticket_id"`
	Type        domain.EventType `json:"event_type"`
	Data        map[string]any   `json:"data"`
	UserID      *string          `json:"user_id"`
	CreatedAt   time.Time        `json:"created_at"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`
}

// Events maps the audit log.
func Events(items []domain.TicketEvent) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		data := e.Data
		if data == nil {
			data = map[string]any{}
		}
		out = append(out, EventResponse{
			ID:          e.ID,
			TicketID:    e.TicketID,
			Type:        e.Type,
			Data:        data,
			UserID:      e.UserID,
			CreatedAt:   e.CreatedAt,
			PublishedAt: e.PublishedAt,
		})
	}
	return out
}
