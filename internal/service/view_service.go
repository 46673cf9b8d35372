package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/clock"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/views"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// ViewService lists, stores and evaluates ticket views.
type ViewService struct {
	saved   repository.SavedViewRepository
	tickets repository.TicketRepository
	clock   clock.Clock
	logger  *zap.Logger
}

// CreateViewInput describes a new saved view.
type CreateViewInput struct {
	Name     string
	Filters  domain.ViewFilters
	Team     *string
	IsPublic bool
}

// ViewResult is one page of tickets matching a view. AsOf is the instant
// relative SLA filters and the breached flag were evaluated at.
type ViewResult struct {
	Items []domain.Ticket
	Total int
	Page  int
	Limit int
	AsOf  time.Time
}

// NewViewService constructs the service.
func NewViewService(saved repository.SavedViewRepository, tickets repository.TicketRepository, clk clock.Clock, logger *zap.Logger) *ViewService {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewService{saved: saved, tickets: tickets, clock: clk, logger: logger}
}

// List returns the built-in views followed by the saved views visible to p.
func (s *ViewService) List(ctx context.Context, p *domain.Principal) ([]views.Definition, error) {
	if err := requirePermission(p, domain.PermTicketsRead); err != nil {
		return nil, err
	}
	result := views.Builtins()
	saved, err := s.saved.ListVisible(ctx, p.OrgID, p.UserID, p.Teams.Slice())
	if err != nil {
		return nil, err
	}
	for _, v := range saved {
		result = append(result, views.FromSaved(v))
	}
	return result, nil
}

// Get returns a built-in or a visible saved view.
func (s *ViewService) Get(ctx context.Context, p *domain.Principal, viewID string) (*views.Definition, error) {
	if err := requirePermission(p, domain.PermTicketsRead); err != nil {
		return nil, err
	}
	if def, ok := views.Builtin(viewID); ok {
		return &def, nil
	}
	view, err := s.loadSaved(ctx, p, viewID)
	if err != nil {
		return nil, err
	}
	def := views.FromSaved(*view)
	return &def, nil
}

// Create stores a saved view. Public views need views:publish; team views
// need membership in the team unless the caller is an admin.
func (s *ViewService) Create(ctx context.Context, p *domain.Principal, input CreateViewInput) (*domain.SavedView, error) {
	if err := requirePermission(p, domain.PermTicketsRead); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if _, ok := views.Builtin(name); ok {
		return nil, apperrors.NewValidationError("name collides with a built-in view", map[string]any{"field": "name"})
	}
	if err := views.Validate(input.Filters); err != nil {
		return nil, err
	}
	if input.IsPublic && !auth.HasPermission(p, domain.PermViewsPublish) {
		return nil, apperrors.NewForbidden("missing permission " + domain.PermViewsPublish)
	}
	team := trimOptional(input.Team)
	if team != nil && !auth.IsAdmin(p) && !p.Teams.Has(*team) {
		return nil, apperrors.NewForbidden("not a member of team " + *team)
	}

	view := &domain.SavedView{
		ID:        uuid.NewString(),
		OrgID:     p.OrgID,
		Name:      name,
		Filters:   input.Filters,
		Team:      team,
		IsPublic:  input.IsPublic,
		CreatedBy: p.UserID,
		CreatedAt: s.clock.Now(),
	}
	if !input.IsPublic {
		owner := p.UserID
		view.UserID = &owner
	}
	if err := s.saved.Create(ctx, view); err != nil {
		return nil, err
	}
	return view, nil
}

// Delete removes a saved view. Only its creator or an admin may delete it;
// built-in views cannot be deleted.
func (s *ViewService) Delete(ctx context.Context, p *domain.Principal, viewID string) error {
	if err := requirePermission(p, domain.PermTicketsRead); err != nil {
		return err
	}
	if _, ok := views.Builtin(viewID); ok {
		return apperrors.NewForbidden("built-in views cannot be deleted")
	}
	view, err := s.loadSaved(ctx, p, viewID)
	if err != nil {
		return err
	}
	if view.CreatedBy != p.UserID && !auth.IsAdmin(p) {
		return apperrors.NewForbidden("only the creator may delete this view")
	}
	if err := s.saved.Delete(ctx, view.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("view", map[string]any{"view_id": viewID})
		}
		return err
	}
	return nil
}

// Evaluate runs a view against the caller's visible tickets.
func (s *ViewService) Evaluate(ctx context.Context, p *domain.Principal, viewID string, page views.Page) (*ViewResult, error) {
	def, err := s.Get(ctx, p, viewID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, p, def.Filters, page)
}

// Search runs ad hoc filters with the same semantics as a saved view.
func (s *ViewService) Search(ctx context.Context, p *domain.Principal, filters domain.ViewFilters, page views.Page) (*ViewResult, error) {
	if err := requirePermission(p, domain.PermTicketsRead); err != nil {
		return nil, err
	}
	return s.run(ctx, p, filters, page)
}

func (s *ViewService) run(ctx context.Context, p *domain.Principal, filters domain.ViewFilters, page views.Page) (*ViewResult, error) {
	now := s.clock.Now()
	filter, err := views.Compile(filters, auth.VisibilityScope(p), p.UserID, now, page)
	if err != nil {
		return nil, err
	}
	items, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	pageNo := 1
	if filter.Limit > 0 {
		pageNo = filter.Offset/filter.Limit + 1
	}
	return &ViewResult{
		Items: items,
		Total: total,
		Page:  pageNo,
		Limit: filter.Limit,
		AsOf:  now,
	}, nil
}

func (s *ViewService) loadSaved(ctx context.Context, p *domain.Principal, viewID string) (*domain.SavedView, error) {
	view, err := s.saved.GetByID(ctx, viewID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("view", map[string]any{"view_id": viewID})
	}
	if err != nil {
		return nil, err
	}
	if view.OrgID != p.OrgID || !savedViewVisible(p, view) {
		return nil, apperrors.NewNotFound("view", map[string]any{"view_id": viewID})
	}
	return view, nil
}

func savedViewVisible(p *domain.Principal, v *domain.SavedView) bool {
	switch {
	case v.IsPublic, auth.IsAdmin(p), v.CreatedBy == p.UserID:
		return true
	case v.UserID != nil && *v.UserID == p.UserID:
		return true
	case v.Team != nil && p.Teams.Has(*v.Team):
		return true
	}
	return false
}
