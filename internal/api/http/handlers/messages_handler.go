package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/clock"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/service"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// MessagesHandler exposes ticket threads and attachment URLs.
type MessagesHandler struct {
	messages *service.MessageService
	tickets  *service.TicketService
	clock    clock.Clock
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messages *service.MessageService, tickets *service.TicketService, clk clock.Clock) *MessagesHandler {
	if clk == nil {
		clk = clock.System()
	}
	return &MessagesHandler{messages: messages, tickets: tickets, clock: clk}
}

// ListMessages GET /tickets/:id/messages.
func (h *MessagesHandler) ListMessages(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	msgs, err := h.tickets.ListMessages(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.Messages(msgs), nil)
}

// PostMessage POST /tickets/:id/messages.
func (h *MessagesHandler) PostMessage(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	attachments := make([]domain.Attachment, 0, len(req.Attachments))
	for _, att := range req.Attachments {
		attachments = append(attachments, domain.Attachment{
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
		})
	}
	res, err := h.messages.Post(c.UserContext(), p, c.Params("id"), service.PostMessageInput{
		Kind:        req.Kind,
		Channel:     req.Channel,
		Body:        req.Body,
		HTML:        req.HTML,
		Attachments: attachments,
		To:          req.To,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.PostMessageResponse{
		Message: dto.Message(res.Message),
		Ticket:  dto.Ticket(res.Ticket, h.clock.Now()),
	}, res.Warnings)
}

// UploadURL POST /tickets/:id/attachments/upload-url.
func (h *MessagesHandler) UploadURL(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UploadURLRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	upload, err := h.messages.UploadURL(c.UserContext(), p, c.Params("id"), req.FileName, req.MimeType, req.SizeBytes)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.UploadURLResponse{
		StorageKey: upload.StorageKey,
		URL:        upload.URL,
		ExpiresAt:  upload.ExpiresAt,
	}, nil)
}

// DownloadURL GET /tickets/:id/attachments/download-url?key=.
func (h *MessagesHandler) DownloadURL(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	key := c.Query("key")
	if key == "" {
		return apperrors.NewValidationError("key is required", map[string]any{"field": "key"})
	}
	url, err := h.messages.DownloadURL(c.UserContext(), p, c.Params("id"), key)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, fiber.Map{"storage_key": key, "url": url}, nil)
}
