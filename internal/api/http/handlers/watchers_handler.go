package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/service"
)

// WatchersHandler exposes the watcher registry.
type WatchersHandler struct {
	service *service.WatcherService
}

// NewWatchersHandler constructs handler.
func NewWatchersHandler(watcherService *service.WatcherService) *WatchersHandler {
	return &WatchersHandler{service: watcherService}
}

// List GET /tickets/:id/watchers.
func (h *WatchersHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.Watchers(items), nil)
}

// Add POST /tickets/:id/watchers.
func (h *WatchersHandler) Add(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AddWatcherRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	w, err := h.service.Add(c.UserContext(), p, c.Params("id"), req.UserID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.Watcher(*w), nil)
}

// Remove DELETE /tickets/:id/watchers/:userId.
func (h *WatchersHandler) Remove(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.Remove(c.UserContext(), p, c.Params("id"), c.Params("userId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
