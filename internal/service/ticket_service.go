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
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/mail"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/routing"
	"github.com/spec-kit/ticket-engine/internal/sla"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// TicketService is the ticket state machine: creation, field updates,
// status transitions and purge.
type TicketService struct {
	access            ticketAccess
	tickets           repository.TicketRepository
	messages          repository.TicketMessageRepository
	events            repository.TicketEventRepository
	sla               *sla.Calculator
	router            *routing.Engine
	sink              events.Sink
	clock             clock.Clock
	logger            *zap.Logger
	metrics           *observability.Metrics
	messageIDDomain   string
	optimisticLocking bool
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	MessageRepo     repository.TicketMessageRepository
	WatcherRepo     repository.TicketWatcherRepository
	EventRepo       repository.TicketEventRepository
	SLA             *sla.Calculator
	Router          *routing.Engine
	Sink            events.Sink
	Clock           clock.Clock
	Logger          *zap.Logger
	Metrics         *observability.Metrics
	MessageIDDomain string
	// OptimisticLocking honors ExpectedVersion on updates. Without it
	// updates are last-write-wins.
	OptimisticLocking bool
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Subject   string
	Body      string
	Type      domain.TicketType
	Priority  domain.TicketPriority
	Channel   domain.Channel
	CompanyID *string
	ContactID *string
	OrderID   *string
	QuoteID   *string
	Team      *string
}

// OptionalString is a partial-update field: Set with a nil Value clears it.
type OptionalString struct {
	Set   bool
	Value *string
}

// UpdateTicketInput is a partial update; nil/unset fields are left alone.
type UpdateTicketInput struct {
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	OwnerID         OptionalString
	Team            OptionalString
	Subject         *string
	Type            *domain.TicketType
	ExpectedVersion *int
}

// TicketResult is a committed ticket plus any soft failures.
type TicketResult struct {
	Ticket   *domain.Ticket
	Warnings []apperrors.Warning
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Router == nil {
		deps.Router = routing.NewEngine(nil)
	}
	if deps.MessageIDDomain == "" {
		deps.MessageIDDomain = "tickets.local"
	}
	return &TicketService{
		access:            ticketAccess{tickets: deps.TicketRepo, watchers: deps.WatcherRepo},
		tickets:           deps.TicketRepo,
		messages:          deps.MessageRepo,
		events:            deps.EventRepo,
		sla:               deps.SLA,
		router:            deps.Router,
		sink:              deps.Sink,
		clock:             deps.Clock,
		logger:            deps.Logger,
		metrics:           deps.Metrics,
		messageIDDomain:   deps.MessageIDDomain,
		optimisticLocking: deps.OptimisticLocking,
	}
}

// Create opens a ticket in status new, routes it when no team was given and
// stamps the SLA due date. A missing SLA policy is a warning, not a failure.
func (s *TicketService) Create(ctx context.Context, p *domain.Principal, input CreateTicketInput) (*TicketResult, error) {
	if err := requirePermission(p, domain.PermTicketsWrite); err != nil {
		return nil, err
	}
	if err := validateCreate(&input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		OrgID:       p.OrgID,
		Subject:     input.Subject,
		Description: input.Body,
		Type:        input.Type,
		Channel:     input.Channel,
		Status:      domain.TicketStatusNew,
		Priority:    input.Priority,
		Team:        input.Team,
		CompanyID:   input.CompanyID,
		ContactID:   input.ContactID,
		OrderID:     input.OrderID,
		QuoteID:     input.QuoteID,
		CreatedBy:   p.UserID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ticket.EmailReferences = []string{mail.RootMessageID(ticket.ID, s.messageIDDomain)}

	data := map[string]any{
		"subject":  ticket.Subject,
		"type":     ticket.Type,
		"priority": ticket.Priority,
		"channel":  ticket.Channel,
	}

	if ticket.Team == nil {
		decision := s.router.Route(routing.Input{
			Type:         ticket.Type,
			Channel:      ticket.Channel,
			Priority:     ticket.Priority,
			CreatorID:    p.UserID,
			CreatorTeams: p.Teams,
		})
		team := decision.Team
		ticket.Team = &team
		ticket.OwnerID = decision.OwnerID
		data["routed"] = true
		if decision.RuleID != "" {
			data["routing_rule_id"] = decision.RuleID
		}
	}
	data["team"] = nullable(ticket.Team)
	data["owner_id"] = nullable(ticket.OwnerID)

	var warnings []apperrors.Warning
	warning, err := s.applySLA(ctx, ticket, now)
	if err != nil {
		return nil, err
	}
	if warning != nil {
		warnings = append(warnings, *warning)
	}
	data["sla_id"] = nullable(ticket.SLAID)
	data["sla_due"] = nullableTime(ticket.SLADue)

	evt := newEvent(ticket, domain.EventTicketCreated, data, p, now)
	if err := s.tickets.Create(ctx, ticket, []domain.TicketEvent{evt}); err != nil {
		return nil, err
	}
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("org_id", ticket.OrgID),
		zap.String("team", derefString(ticket.Team)))
	return &TicketResult{Ticket: ticket, Warnings: warnings}, nil
}

// Get returns a ticket the principal may read.
func (s *TicketService) Get(ctx context.Context, p *domain.Principal, ticketID string) (*domain.Ticket, error) {
	return s.access.load(ctx, p, ticketID, domain.PermTicketsRead)
}

// Update diffs input against the stored ticket and commits the changed
// fields with one <field>_changed event each. An empty diff is rejected.
// Only changed columns are written, so concurrent updates of different
// fields both land.
func (s *TicketService) Update(ctx context.Context, p *domain.Principal, ticketID string, input UpdateTicketInput) (*TicketResult, error) {
	prev, err := s.access.load(ctx, p, ticketID, domain.PermTicketsWrite)
	if err != nil {
		return nil, err
	}
	if err := validateUpdate(&input); err != nil {
		return nil, err
	}

	expected := 0
	if s.optimisticLocking && input.ExpectedVersion != nil {
		if *input.ExpectedVersion != prev.Version {
			return nil, versionConflict(prev.Version)
		}
		expected = *input.ExpectedVersion
	}

	now := s.clock.Now()
	next := prev.Clone()
	var (
		evts     []domain.TicketEvent
		warnings []apperrors.Warning
		patch    repository.TicketPatch
	)

	if input.Status != nil && *input.Status != prev.Status {
		if !CanTransition(prev.Status, *input.Status) {
			return nil, apperrors.NewInvalidTransition(string(prev.Status), string(*input.Status))
		}
		applyStatus(next, *input.Status, now)
		patch.Add(repository.FieldStatus)
		evts = append(evts, newEvent(next, domain.EventStatusChanged, change(prev.Status, next.Status), p, now))
	}

	if input.Priority != nil && *input.Priority != prev.Priority {
		next.Priority = *input.Priority
		patch.Add(repository.FieldPriority)
		warning, err := s.applySLA(ctx, next, now)
		if err != nil {
			return nil, err
		}
		if warning != nil {
			warnings = append(warnings, *warning)
		}
		data := change(prev.Priority, next.Priority)
		data["sla_id"] = nullable(next.SLAID)
		data["sla_due"] = nullableTime(next.SLADue)
		evts = append(evts, newEvent(next, domain.EventPriorityChanged, data, p, now))
	}

	if input.OwnerID.Set && !sameString(prev.OwnerID, input.OwnerID.Value) {
		next.OwnerID = input.OwnerID.Value
		patch.Add(repository.FieldOwner)
		evts = append(evts, newEvent(next, domain.EventOwnerChanged, change(nullable(prev.OwnerID), nullable(next.OwnerID)), p, now))
	}

	if input.Team.Set && !sameString(prev.Team, input.Team.Value) {
		next.Team = input.Team.Value
		patch.Add(repository.FieldTeam)
		evts = append(evts, newEvent(next, domain.EventTeamChanged, change(nullable(prev.Team), nullable(next.Team)), p, now))
	}

	if input.Subject != nil && *input.Subject != prev.Subject {
		next.Subject = *input.Subject
		patch.Add(repository.FieldSubject)
		evts = append(evts, newEvent(next, domain.EventSubjectChanged, change(prev.Subject, next.Subject), p, now))
	}

	if input.Type != nil && *input.Type != prev.Type {
		next.Type = *input.Type
		patch.Add(repository.FieldType)
		evts = append(evts, newEvent(next, domain.EventTypeChanged, change(prev.Type, next.Type), p, now))
	}

	if len(evts) == 0 {
		return nil, apperrors.ErrNoOpUpdate
	}
	next.UpdatedAt = now

	if err := s.tickets.Update(ctx, next, patch, expected, evts); err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionMismatch):
			return nil, versionConflict(prev.Version)
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return &TicketResult{Ticket: next, Warnings: warnings}, nil
}

// Purge hard-deletes a ticket with its messages, watchers and events. Only
// admins may purge. The ticket_purged event goes straight to the sink since
// the ticket's own event log is gone.
func (s *TicketService) Purge(ctx context.Context, p *domain.Principal, ticketID string) error {
	if err := requirePermission(p, domain.PermTicketsDelete); err != nil {
		return err
	}
	if !auth.IsAdmin(p) {
		return apperrors.NewForbidden("purge requires admin role")
	}
	ticket, err := s.access.load(ctx, p, ticketID, domain.PermTicketsDelete)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return err
	}

	evt := newEvent(ticket, domain.EventTicketPurged, map[string]any{"subject": ticket.Subject}, p, s.clock.Now())
	if s.sink != nil {
		if err := s.sink.Publish(ctx, evt); err != nil {
			s.logger.Warn("publish purge event failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	s.logger.Info("ticket purged", zap.String("ticket_id", ticket.ID), zap.String("by", p.UserID))
	return nil
}

// ListEvents returns the audit log of a ticket, oldest first.
func (s *TicketService) ListEvents(ctx context.Context, p *domain.Principal, ticketID string) ([]domain.TicketEvent, error) {
	ticket, err := s.access.load(ctx, p, ticketID, domain.PermTicketsRead)
	if err != nil {
		return nil, err
	}
	return s.events.ListByTicket(ctx, ticket.ID)
}

// ListMessages returns the ticket thread, oldest first.
func (s *TicketService) ListMessages(ctx context.Context, p *domain.Principal, ticketID string) ([]domain.TicketMessage, error) {
	ticket, err := s.access.load(ctx, p, ticketID, domain.PermTicketsRead)
	if err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ctx, ticket.ID)
}

// applySLA recomputes slaId/slaDue from the ticket priority. With no
// matching policy both are cleared and a warning is returned.
func (s *TicketService) applySLA(ctx context.Context, t *domain.Ticket, from time.Time) (*apperrors.Warning, error) {
	due, err := s.sla.ComputeDue(ctx, t.Priority, from)
	if errors.Is(err, sla.ErrNoPolicyForPriority) {
		t.SLAID = nil
		t.SLADue = nil
		s.logger.Warn("no sla policy for priority",
			zap.String("ticket_id", t.ID),
			zap.String("priority", string(t.Priority)))
		s.metrics.RecordWarning(apperrors.WarnNoPolicyForPriority)
		return &apperrors.Warning{
			Code:    apperrors.WarnNoPolicyForPriority,
			Message: "no SLA policy for priority " + string(t.Priority) + "; slaDue cleared",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	policyID := due.PolicyID
	at := due.At
	t.SLAID = &policyID
	t.SLADue = &at
	return nil, nil
}

func validateCreate(input *CreateTicketInput) error {
	input.Subject = strings.TrimSpace(input.Subject)
	input.Body = strings.TrimSpace(input.Body)
	if input.Subject == "" {
		return apperrors.NewValidationError("subject is required", map[string]any{"field": "subject"})
	}
	if !input.Type.Valid() {
		return apperrors.NewValidationError("invalid ticket type", map[string]any{"field": "type", "value": input.Type})
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityNormal
	}
	if !input.Priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority", "value": input.Priority})
	}
	if input.Channel == "" {
		input.Channel = domain.ChannelWeb
	}
	if !input.Channel.ValidForTicket() {
		return apperrors.NewValidationError("invalid channel", map[string]any{"field": "channel", "value": input.Channel})
	}
	input.Team = trimOptional(input.Team)
	return nil
}

func validateUpdate(input *UpdateTicketInput) error {
	if input.Status != nil && !input.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"field": "status", "value": *input.Status})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority", "value": *input.Priority})
	}
	if input.Type != nil && !input.Type.Valid() {
		return apperrors.NewValidationError("invalid ticket type", map[string]any{"field": "type", "value": *input.Type})
	}
	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		if subject == "" {
			return apperrors.NewValidationError("subject must not be empty", map[string]any{"field": "subject"})
		}
		input.Subject = &subject
	}
	input.OwnerID.Value = trimOptional(input.OwnerID.Value)
	input.Team.Value = trimOptional(input.Team.Value)
	return nil
}

func versionConflict(current int) error {
	return apperrors.NewDomainError(apperrors.CodeVersionConflict, "ticket was modified concurrently",
		apperrors.ErrVersionConflict.HTTPStatus, map[string]any{"current_version": current})
}

// trimOptional trims s and maps blank strings to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
