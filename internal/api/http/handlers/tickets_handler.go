package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/clock"
	"github.com/spec-kit/ticket-engine/internal/service"
)

// TicketsHandler exposes the ticket state machine.
type TicketsHandler struct {
	service *service.TicketService
	clock   clock.Clock
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, clk clock.Clock) *TicketsHandler {
	if clk == nil {
		clk = clock.System()
	}
	return &TicketsHandler{service: ticketService, clock: clk}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.service.Create(c.UserContext(), p, service.CreateTicketInput{
		Subject:   req.Subject,
		Body:      req.Body,
		Type:      req.Type,
		Priority:  req.Priority,
		Channel:   req.Channel,
		CompanyID: req.CompanyID,
		ContactID: req.ContactID,
		OrderID:   req.OrderID,
		QuoteID:   req.QuoteID,
		Team:      req.Team,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.Ticket(res.Ticket, h.clock.Now()), res.Warnings)
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.Ticket(ticket, h.clock.Now()), nil)
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.service.Update(c.UserContext(), p, c.Params("id"), service.UpdateTicketInput{
		Status:          req.Status,
		Priority:        req.Priority,
		OwnerID:         service.OptionalString{Set: req.OwnerID.Set, Value: req.OwnerID.Value},
		Team:            service.OptionalString{Set: req.Team.Set, Value: req.Team.Value},
		Subject:         req.Subject,
		Type:            req.Type,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.Ticket(res.Ticket, h.clock.Now()), res.Warnings)
}

// PurgeTicket DELETE /tickets/:id.
func (h *TicketsHandler) PurgeTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.Purge(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListEvents GET /tickets/:id/events.
func (h *TicketsHandler) ListEvents(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	evts, err := h.service.ListEvents(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.Events(evts), nil)
}
