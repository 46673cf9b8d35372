package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/clock"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/mail"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/storage"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

const defaultSendTimeout = 10 * time.Second

var errStorageDisabled = apperrors.NewDomainError(apperrors.CodeUnavailable, "attachment storage is not configured", http.StatusServiceUnavailable, nil)

// AttachmentPresigner issues direct upload and download URLs.
type AttachmentPresigner interface {
	PresignUpload(ctx context.Context, ticketID, fileName, mimeType string, now time.Time) (*storage.PresignedUpload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

// MessageService appends to ticket threads and delivers email replies.
type MessageService struct {
	access          ticketAccess
	messages        repository.TicketMessageRepository
	sender          mail.Sender
	attachments     AttachmentPresigner
	clock           clock.Clock
	logger          *zap.Logger
	metrics         *observability.Metrics
	mailFrom        string
	messageIDDomain string
	sendTimeout     time.Duration
}

// MessageDependencies bundles collaborators for the message service.
type MessageDependencies struct {
	TicketRepo      repository.TicketRepository
	MessageRepo     repository.TicketMessageRepository
	WatcherRepo     repository.TicketWatcherRepository
	Sender          mail.Sender
	Attachments     AttachmentPresigner
	Clock           clock.Clock
	Logger          *zap.Logger
	Metrics         *observability.Metrics
	MailFrom        string
	MessageIDDomain string
	SendTimeout     time.Duration
}

// PostMessageInput is the payload of a new thread entry. To lists email
// recipients and is only read for email public replies.
type PostMessageInput struct {
	Kind        domain.MessageKind
	Channel     domain.Channel
	Body        string
	HTML        *string
	Attachments []domain.Attachment
	To          []string
}

// PostResult is the stored message, the ticket as of the post and any soft
// failures.
type PostResult struct {
	Message  *domain.TicketMessage
	Ticket   *domain.Ticket
	Warnings []apperrors.Warning
}

// NewMessageService constructs the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sender == nil {
		deps.Sender = mail.DisabledSender{}
	}
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = defaultSendTimeout
	}
	if deps.MessageIDDomain == "" {
		deps.MessageIDDomain = "tickets.local"
	}
	return &MessageService{
		access:          ticketAccess{tickets: deps.TicketRepo, watchers: deps.WatcherRepo},
		messages:        deps.MessageRepo,
		sender:          deps.Sender,
		attachments:     deps.Attachments,
		clock:           deps.Clock,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
		mailFrom:        deps.MailFrom,
		messageIDDomain: deps.MessageIDDomain,
		sendTimeout:     deps.SendTimeout,
	}
}

// Post appends a message. A public reply on a new ticket acknowledges it:
// status moves to ack, the replier becomes owner and firstResponseAt is
// stamped, all in the same transaction as the message. Email replies are
// sent before the message is stored; a failed send keeps the message as an
// internal entry and reports a warning.
func (s *MessageService) Post(ctx context.Context, p *domain.Principal, ticketID string, input PostMessageInput) (*PostResult, error) {
	ticket, err := s.access.load(ctx, p, ticketID, domain.PermTicketsWrite)
	if err != nil {
		return nil, err
	}
	if err := validatePost(ticket.ID, &input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	msg := &domain.TicketMessage{
		ID:          uuid.NewString(),
		TicketID:    ticket.ID,
		Kind:        input.Kind,
		Channel:     input.Channel,
		Body:        input.Body,
		HTML:        input.HTML,
		Attachments: input.Attachments,
		CreatedBy:   p.UserID,
		CreatedAt:   now,
	}

	if input.Kind == domain.MessageKindInternalNote {
		evt := newEvent(ticket, domain.EventNoted, map[string]any{"message_id": msg.ID}, p, now)
		if err := s.messages.Append(ctx, msg, nil, repository.TicketPatch{}, 0, []domain.TicketEvent{evt}); err != nil {
			return nil, s.mapAppendError(err, ticketID)
		}
		return &PostResult{Message: msg, Ticket: ticket}, nil
	}

	var (
		next     *domain.Ticket
		evts     []domain.TicketEvent
		warnings []apperrors.Warning
		patch    repository.TicketPatch
	)

	if ticket.Status == domain.TicketStatusNew {
		next = ticket.Clone()
		applyStatus(next, domain.TicketStatusAck, now)
		replier := p.UserID
		next.OwnerID = &replier
		next.UpdatedAt = now
		patch.Add(repository.FieldStatus)
		patch.Add(repository.FieldOwner)
		data := change(ticket.Status, next.Status)
		data["owner"] = change(nullable(ticket.OwnerID), replier)
		evts = append(evts, newEvent(next, domain.EventStatusChanged, data, p, now))
	}

	evts = append(evts, newEvent(ticket, domain.EventReplied, map[string]any{
		"message_id": msg.ID,
		"channel":    input.Channel,
	}, p, now))

	if input.Channel == domain.ChannelEmail {
		if next == nil {
			next = ticket.Clone()
			next.UpdatedAt = now
		}
		evt, warning := s.deliver(ctx, p, next, msg, input.To, now)
		evts = append(evts, evt)
		if warning != nil {
			warnings = append(warnings, *warning)
		}
		if msg.EmailMessageID != nil {
			patch.AppendEmailReference = *msg.EmailMessageID
		}
	}

	if err := s.messages.Append(ctx, msg, next, patch, 0, evts); err != nil {
		if msg.EmailMessageID != nil {
			s.logger.Error("email sent but message not stored",
				zap.String("ticket_id", ticket.ID),
				zap.String("message_id", msg.ID),
				zap.String("email_message_id", *msg.EmailMessageID),
				zap.Error(err))
		}
		return nil, s.mapAppendError(err, ticketID)
	}
	if next == nil || patch.Empty() {
		next = ticket
	}
	return &PostResult{Message: msg, Ticket: next, Warnings: warnings}, nil
}

// deliver sends msg as email threaded onto t. On success the new Message-ID
// is appended to t's reference chain; on failure msg is downgraded to the
// internal channel.
func (s *MessageService) deliver(ctx context.Context, p *domain.Principal, t *domain.Ticket, msg *domain.TicketMessage, to []string, now time.Time) (domain.TicketEvent, *apperrors.Warning) {
	references := append([]string(nil), t.EmailReferences...)
	if len(references) == 0 {
		references = []string{mail.RootMessageID(t.ID, s.messageIDDomain)}
	}
	messageID := mail.MessageID(t.ID, msg.ID, s.messageIDDomain)

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	err := s.sender.Send(sendCtx, mail.Message{
		From:       s.mailFrom,
		To:         to,
		Subject:    "Re: " + t.Subject,
		Text:       msg.Body,
		HTML:       msg.HTML,
		MessageID:  messageID,
		References: references,
		Date:       now,
	})
	if err != nil {
		msg.Channel = domain.ChannelInternal
		s.logger.Warn("email delivery failed",
			zap.String("ticket_id", t.ID),
			zap.String("message_id", msg.ID),
			zap.Error(err))
		s.metrics.RecordWarning(apperrors.WarnEmailDelivery)
		evt := newEvent(t, domain.EventEmailFailed, map[string]any{
			"message_id": msg.ID,
			"reason":     err.Error(),
		}, p, now)
		return evt, &apperrors.Warning{
			Code:    apperrors.WarnEmailDelivery,
			Message: "email delivery failed; message saved as internal: " + err.Error(),
		}
	}

	msg.EmailMessageID = &messageID
	msg.EmailReferences = references
	t.EmailReferences = append(references, messageID)
	return newEvent(t, domain.EventEmailSent, map[string]any{
		"message_id":       msg.ID,
		"email_message_id": messageID,
		"references":       references,
	}, p, now), nil
}

// UploadURL presigns a direct upload for a future attachment.
func (s *MessageService) UploadURL(ctx context.Context, p *domain.Principal, ticketID, fileName, mimeType string, size int64) (*storage.PresignedUpload, error) {
	ticket, err := s.access.load(ctx, p, ticketID, domain.PermTicketsWrite)
	if err != nil {
		return nil, err
	}
	if s.attachments == nil {
		return nil, errStorageDisabled
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, apperrors.NewValidationError("file_name is required", map[string]any{"field": "file_name"})
	}
	if size <= 0 || size > storage.MaxAttachmentSize {
		return nil, apperrors.NewValidationError("invalid attachment size", map[string]any{"field": "size_bytes", "max": storage.MaxAttachmentSize})
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "application/octet-stream"
	}
	return s.attachments.PresignUpload(ctx, ticket.ID, fileName, mimeType, s.clock.Now())
}

// DownloadURL presigns a download for one of the ticket's attachments.
func (s *MessageService) DownloadURL(ctx context.Context, p *domain.Principal, ticketID, storageKey string) (string, error) {
	ticket, err := s.access.load(ctx, p, ticketID, domain.PermTicketsRead)
	if err != nil {
		return "", err
	}
	if s.attachments == nil {
		return "", errStorageDisabled
	}
	if !storage.KeyBelongsTo(storageKey, ticket.ID) {
		return "", apperrors.NewNotFound("attachment", map[string]any{"storage_key": storageKey})
	}
	return s.attachments.PresignDownload(ctx, storageKey)
}

func (s *MessageService) mapAppendError(err error, ticketID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return err
}

func validatePost(ticketID string, input *PostMessageInput) error {
	if !input.Kind.Valid() {
		return apperrors.NewValidationError("invalid message kind", map[string]any{"field": "kind", "value": input.Kind})
	}
	if input.Channel == "" {
		input.Channel = domain.ChannelInternal
	}
	if !input.Channel.ValidForMessage() {
		return apperrors.NewValidationError("invalid message channel", map[string]any{"field": "channel", "value": input.Channel})
	}
	input.Body = strings.TrimSpace(input.Body)
	if input.Body == "" {
		return apperrors.NewValidationError("body is required", map[string]any{"field": "body"})
	}
	for i, a := range input.Attachments {
		if a.StorageKey == "" || strings.TrimSpace(a.FileName) == "" {
			return apperrors.NewValidationError("attachment needs storage_key and file_name", map[string]any{"index": i})
		}
		if !storage.KeyBelongsTo(a.StorageKey, ticketID) {
			return apperrors.NewValidationError("attachment was not uploaded for this ticket", map[string]any{"index": i})
		}
		if a.SizeBytes < 0 || a.SizeBytes > storage.MaxAttachmentSize {
			return apperrors.NewValidationError("invalid attachment size", map[string]any{"index": i})
		}
	}
	cleaned := input.To[:0]
	for _, addr := range input.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			cleaned = append(cleaned, addr)
		}
	}
	input.To = cleaned
	return nil
}
