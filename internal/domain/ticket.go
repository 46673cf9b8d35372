package domain

import "time"

// TicketType classifies a ticket.
type TicketType string

const (
	TicketTypeSupport  TicketType = "support"
	TicketTypeDelivery TicketType = "delivery"
	TicketTypeBilling  TicketType = "billing"
	TicketTypeQuality  TicketType = "quality"
	TicketTypeReturn   TicketType = "return"
	TicketTypeOther    TicketType = "other"
)

// Valid reports whether t is a known type.
func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeSupport, TicketTypeDelivery, TicketTypeBilling, TicketTypeQuality, TicketTypeReturn, TicketTypeOther:
		return true
	}
	return false
}

// Channel is where a ticket or message originated or was delivered.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPhone    Channel = "phone"
	ChannelInternal Channel = "internal"
	ChannelSystem   Channel = "system"
)

// ValidForTicket reports whether c may be used as a ticket channel.
func (c Channel) ValidForTicket() bool {
	switch c {
	case ChannelWeb, ChannelEmail, ChannelSMS, ChannelPhone, ChannelInternal, ChannelSystem:
		return true
	}
	return false
}

// ValidForMessage reports whether c may be used as a message channel.
func (c Channel) ValidForMessage() bool {
	return c != ChannelWeb && c.ValidForTicket()
}

// TicketStatus enumerates lifecycle states, in lifecycle order.
type TicketStatus string

const (
	TicketStatusNew             TicketStatus = "new"
	TicketStatusAck             TicketStatus = "ack"
	TicketStatusInProgress      TicketStatus = "in_progress"
	TicketStatusWaitingCustomer TicketStatus = "waiting_customer"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusAck, TicketStatusInProgress, TicketStatusWaitingCustomer, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether s is resolved or closed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates urgency, ordered low to urgent.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Rank orders priorities; unknown values rank 0.
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityLow:
		return 1
	case TicketPriorityNormal:
		return 2
	case TicketPriorityHigh:
		return 3
	case TicketPriorityUrgent:
		return 4
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return p.Rank() > 0
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	OrgID       string
	Subject     string
	Description string
	Type        TicketType
	Channel     Channel
	Status      TicketStatus
	Priority    TicketPriority
	OwnerID     *string
	Team        *string
	SLAID       *string
	SLADue      *time.Time
	CompanyID   *string
	ContactID   *string
	OrderID     *string
	QuoteID     *string
	CreatedBy   string
	// EmailReferences is the outbound threading chain: the ticket's
	// synthetic root Message-ID followed by every sent message id, oldest
	// first.
	EmailReferences []string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	ClosedAt        *time.Time
}

// SLABreached reports whether the first-response deadline has passed on a
// ticket that is still open.
func (t *Ticket) SLABreached(now time.Time) bool {
	if t.SLADue == nil || t.Status.IsTerminal() {
		return false
	}
	return now.After(*t.SLADue)
}

// Clone returns a deep copy so callers can diff against the prior row.
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.OwnerID = cloneString(t.OwnerID)
	c.Team = cloneString(t.Team)
	c.SLAID = cloneString(t.SLAID)
	c.SLADue = cloneTime(t.SLADue)
	c.CompanyID = cloneString(t.CompanyID)
	c.ContactID = cloneString(t.ContactID)
	c.OrderID = cloneString(t.OrderID)
	c.QuoteID = cloneString(t.QuoteID)
	c.FirstResponseAt = cloneTime(t.FirstResponseAt)
	c.ClosedAt = cloneTime(t.ClosedAt)
	c.EmailReferences = append([]string(nil), t.EmailReferences...)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
