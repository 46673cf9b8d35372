package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/views"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

func principal(c *fiber.Ctx) (*domain.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	return p, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	return nil
}

func respond(c *fiber.Ctx, status int, data any, warnings []apperrors.Warning) error {
	return c.Status(status).JSON(dto.Response{Data: data, Warnings: warnings})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parsePage(page, limit int, sort, order string) views.Page {
	return views.Page{
		Page:    page,
		Limit:   limit,
		Sort:    strings.TrimSpace(sort),
		SortAsc: strings.EqualFold(strings.TrimSpace(order), "asc"),
	}
}
