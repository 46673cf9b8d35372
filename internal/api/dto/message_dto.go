package dto

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// CreateMessageRequest payload. To is only used for email replies.
type CreateMessageRequest struct {
	Kind        domain.MessageKind  `json:"kind"`
	Channel     domain.Channel      `json:"channel"`
	Body        string              `json:"body"`
	HTML        *string             `json:"html"`
	Attachments []AttachmentRequest `json:"attachments"`
	To          []string            `json:"to"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// UploadURLRequest asks for a presigned upload.
type UploadURLRequest struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// UploadURLResponse is a presigned PUT target.
type UploadURLResponse struct {
	StorageKey string    `json:"storage_key"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// MessageResponse represents a thread message.
type MessageResponse struct {
	ID              string              `json:"id"`
	TicketID        string              `json:"ticket_id"`
	Kind            domain.MessageKind  `json:"kind"`
	Channel         domain.Channel      `json:"channel"`
	Body            string              `json:"body"`
	HTML            *string             `json:"html,omitempty"`
	Attachments     []domain.Attachment `json:"attachments"`
	CreatedBy       string              `json:"created_by"`
	CreatedAt       time.Time           `json:"created_at"`
	EmailMessageID  *string             `json:"email_message_id,omitempty"`
	EmailReferences []string            `json:"email_references,omitempty"`
}

// PostMessageResponse carries the message and the ticket as of the post.
type PostMessageResponse struct {
	Message MessageResponse `json:"message"`
	Ticket  TicketResponse  `json:"ticket"`
}

// Message maps a domain message.
func Message(m *domain.TicketMessage) MessageResponse {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	return MessageResponse{
		ID:              m.ID,
		TicketID:        m.TicketID,
		Kind:            m.Kind,
		Channel:         m.Channel,
		Body:            m.Body,
		HTML:            m.HTML,
		Attachments:     attachments,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
		EmailMessageID:  m.EmailMessageID,
		EmailReferences: m.EmailReferences,
	}
}

// Messages maps a thread.
func Messages(items []domain.TicketMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for i := range items {
		out = append(out, Message(&items[i]))
	}
	return out
}

// AddWatcherRequest payload.
type AddWatcherRequest struct {
	UserID string `json:"user_id"`
}

// WatcherResponse is one watcher.
type WatcherResponse struct {
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Watchers maps watchers.
func Watchers(items []domain.TicketWatcher) []WatcherResponse {
	out := make([]WatcherResponse, 0, len(items))
	for _, w := range items {
		out = append(out, Watcher(w))
	}
	return out
}

// Watcher maps one watcher.
func Watcher(w domain.TicketWatcher) WatcherResponse {
	return WatcherResponse{TicketID: w.TicketID, UserID: w.UserID, CreatedBy: w.CreatedBy, CreatedAt: w.CreatedAt}
}
