package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/service"
)

// ViewsHandler exposes built-in and saved views and ad hoc search.
type ViewsHandler struct {
	service *service.ViewService
}

// NewViewsHandler constructs handler.
func NewViewsHandler(viewService *service.ViewService) *ViewsHandler {
	return &ViewsHandler{service: viewService}
}

// List GET /views.
func (h *ViewsHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	defs, err := h.service.List(c.UserContext(), p)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.Views(defs), nil)
}

// Get GET /views/:id.
func (h *ViewsHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	def, err := h.service.Get(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.View(*def), nil)
}

// Create POST /views.
func (h *ViewsHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateViewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.Create(c.UserContext(), p, service.CreateViewInput{
		Name:     req.Name,
		Filters:  req.Filters,
		Team:     req.Team,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.SavedView(view), nil)
}

// Delete DELETE /views/:id.
func (h *ViewsHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Tickets GET /views/:id/tickets?page&limit&sort&order.
func (h *ViewsHandler) Tickets(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	page := parsePage(parseInt(c.Query("page"), 1), parseInt(c.Query("limit"), 0), c.Query("sort"), c.Query("order"))
	res, err := h.service.Evaluate(c.UserContext(), p, c.Params("id"), page)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, viewTickets(res), nil)
}

// Search POST /tickets/search.
func (h *ViewsHandler) Search(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.SearchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.service.Search(c.UserContext(), p, req.Filters, parsePage(req.Page, req.Limit, req.Sort, req.Order))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, viewTickets(res), nil)
}

func viewTickets(res *service.ViewResult) dto.ViewTicketsResponse {
	return dto.ViewTicketsResponse{
		Items: dto.Tickets(res.Items, res.AsOf),
		Total: res.Total,
		Page:  res.Page,
		Limit: res.Limit,
		AsOf:  res.AsOf,
	}
}
