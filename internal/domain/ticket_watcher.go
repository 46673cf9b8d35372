package domain

import "time"

// TicketWatcher is a secondary observer of a ticket, keyed by (TicketID, UserID).
type TicketWatcher struct {
	TicketID  string
	UserID    string
	CreatedBy string
	CreatedAt time.Time
}
