package domain

import "time"

// MessageKind differentiates customer-visible replies from internal notes.
type MessageKind string

const (
	MessageKindPublicReply  MessageKind = "public_reply"
	MessageKindInternalNote MessageKind = "internal_note"
)

// Valid reports whether k is a known kind.
func (k MessageKind) Valid() bool {
	return k == MessageKindPublicReply || k == MessageKindInternalNote
}

// TicketMessage is an append-only entry in a ticket thread.
type TicketMessage struct {
	ID              string
	TicketID        string
	Kind            MessageKind
	Channel         Channel
	Body            string
	HTML            *string
	Attachments     []Attachment
	CreatedBy       string
	CreatedAt       time.Time
	EmailMessageID  *string
	EmailReferences []string
}

// Attachment is metadata for a stored file; the bytes live in object storage.
type Attachment struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}
