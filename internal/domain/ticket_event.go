package domain

import "time"

// EventType names an audit event.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventStatusChanged   EventType = "status_changed"
	EventPriorityChanged EventType = "priority_changed"
	EventOwnerChanged    EventType = "owner_changed"
	EventTeamChanged     EventType = "team_changed"
	EventSubjectChanged  EventType = "subject_changed"
	EventTypeChanged     EventType = "type_changed"
	EventReplied         EventType = "replied"
	EventNoted           EventType = "noted"
	EventWatcherAdded    EventType = "watcher_added"
	EventWatcherRemoved  EventType = "watcher_removed"
	EventEmailSent       EventType = "email_sent"
	EventEmailFailed     EventType = "email_failed"
	EventTicketPurged    EventType = "ticket_purged"
)

// TicketEvent is an immutable audit record. Events are written in the same
// transaction as the change they describe; PublishedAt is set once the
// outbox relay has handed the event to the sink.
type TicketEvent struct {
	ID          string
	TicketID    string
	OrgID       string
	Type        EventType
	Data        map[string]any
	UserID      *string
	CreatedAt   time.Time
	PublishedAt *time.Time
}
