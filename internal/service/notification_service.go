package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
)

// NotificationService reacts to relayed ticket events in-process, next to
// the Redis fan-out.
type NotificationService struct {
	dispatcher *events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher *events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.SubscribeAll(n.handleAny)
	n.dispatcher.Subscribe(domain.EventEmailFailed, n.handleEmailFailed)
	n.dispatcher.Subscribe(domain.EventTicketPurged, n.handleTicketPurged)
}

func (n *NotificationService) handleAny(_ context.Context, event domain.TicketEvent) error {
	n.logger.Info("ticket event",
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("org_id", event.OrgID),
		zap.String("event_type", string(event.Type)),
		zap.Stringp("user_id", event.UserID))
	return nil
}

func (n *NotificationService) handleEmailFailed(_ context.Context, event domain.TicketEvent) error {
	n.logger.Warn("reply not delivered",
		zap.String("ticket_id", event.TicketID),
		zap.Any("reason", event.Data["reason"]))
	return nil
}

func (n *NotificationService) handleTicketPurged(_ context.Context, event domain.TicketEvent) error {
	n.logger.Info("ticket purged",
		zap.String("ticket_id", event.TicketID),
		zap.Stringp("by", event.UserID))
	return nil
}
