package events

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// Sink receives committed ticket events. Delivery is at-least-once, so
// consumers must tolerate duplicates keyed by Envelope.ID.
type Sink interface {
	Publish(ctx context.Context, event domain.TicketEvent) error
}

// Envelope is the wire shape of a published event.
type Envelope struct {
	ID        string           `json:"id"`
	TicketID  string           `json:"ticket_id"`
	OrgID     string           `json:"org_id"`
	Type      domain.EventType `json:"event_type"`
	Data      map[string]any   `json:"data"`
	UserID    *string          `json:"user_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewEnvelope converts a stored event to its wire shape.
func NewEnvelope(event domain.TicketEvent) Envelope {
	data := event.Data
	if data == nil {
		data = map[string]any{}
	}
	return Envelope{
		ID:        event.ID,
		TicketID:  event.TicketID,
		OrgID:     event.OrgID,
		Type:      event.Type,
		Data:      data,
		UserID:    event.UserID,
		CreatedAt: event.CreatedAt,
	}
}

// OrgChannel returns the per-organization channel derived from base.
func OrgChannel(base, orgID string) string {
	return base + ":" + orgID
}
