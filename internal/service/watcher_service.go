package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/clock"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// WatcherService manages the secondary observers of a ticket.
type WatcherService struct {
	access   ticketAccess
	watchers repository.TicketWatcherRepository
	clock    clock.Clock
	logger   *zap.Logger
}

// NewWatcherService constructs the service.
func NewWatcherService(tickets repository.TicketRepository, watchers repository.TicketWatcherRepository, clk clock.Clock, logger *zap.Logger) *WatcherService {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatcherService{
		access:   ticketAccess{tickets: tickets, watchers: watchers},
		watchers: watchers,
		clock:    clk,
		logger:   logger,
	}
}

// Add makes userID a watcher. Watching twice fails with ErrAlreadyWatching.
func (s *WatcherService) Add(ctx context.Context, p *domain.Principal, ticketID, userID string) (*domain.TicketWatcher, error) {
	ticket, err := s.access.load(ctx, p, ticketID, domain.PermTicketsWrite)
	if err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required", map[string]any{"field": "user_id"})
	}

	now := s.clock.Now()
	watcher := &domain.TicketWatcher{
		TicketID:  ticket.ID,
		UserID:    userID,
		CreatedBy: p.UserID,
		CreatedAt: now,
	}
	evt := newEvent(ticket, domain.EventWatcherAdded, map[string]any{"user_id": userID}, p, now)
	if err := s.watchers.Add(ctx, watcher, evt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ErrAlreadyWatching
		}
		return nil, err
	}
	return watcher, nil
}

// Remove drops userID from the watchers. Removing a non-watcher fails with
// ErrNotWatching and records no event.
func (s *WatcherService) Remove(ctx context.Context, p *domain.Principal, ticketID, userID string) error {
	ticket, err := s.access.load(ctx, p, ticketID, domain.PermTicketsWrite)
	if err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.NewValidationError("user_id is required", map[string]any{"field": "user_id"})
	}
	evt := newEvent(ticket, domain.EventWatcherRemoved, map[string]any{"user_id": userID}, p, s.clock.Now())
	if err := s.watchers.Remove(ctx, ticket.ID, userID, evt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotWatching
		}
		return err
	}
	return nil
}

// List returns the watchers of a ticket in the order they were added.
func (s *WatcherService) List(ctx context.Context, p *domain.Principal, ticketID string) ([]domain.TicketWatcher, error) {
	ticket, err := s.access.load(ctx, p, ticketID, domain.PermTicketsRead)
	if err != nil {
		return nil, err
	}
	return s.watchers.ListByTicket(ctx, ticket.ID)
}
