package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/routing"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

func TestCreateRoutesDeliveryToLogistics(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	outsider := h.create(t, agent("u1", "support"), CreateTicketInput{Type: domain.TicketTypeDelivery})
	if outsider.Team == nil || *outsider.Team != routing.TeamLogistics {
		t.Fatalf("expected logistics team, got %v", outsider.Team)
	}
	if outsider.OwnerID != nil {
		t.Fatalf("creator outside the team must not own the ticket, got %q", *outsider.OwnerID)
	}

	member := h.create(t, agent("u2", routing.TeamLogistics), CreateTicketInput{Type: domain.TicketTypeDelivery})
	if member.OwnerID == nil || *member.OwnerID != "u2" {
		t.Fatalf("creator in logistics should own the ticket, got %v", member.OwnerID)
	}
	if member.Status != domain.TicketStatusNew || member.Priority != domain.TicketPriorityNormal {
		t.Fatalf("unexpected defaults: status=%s priority=%s", member.Status, member.Priority)
	}
	if h.countEvents(member.ID, domain.EventTicketCreated) != 1 {
		t.Fatalf("expected one ticket_created event")
	}
}

func TestCreateKeepsExplicitTeam(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ticket := h.create(t, admin("boss"), CreateTicketInput{Type: domain.TicketTypeDelivery, Team: strPtr("billing")})
	if *ticket.Team != "billing" {
		t.Fatalf("explicit team overwritten: %s", *ticket.Team)
	}
	if len(ticket.EmailReferences) != 1 {
		t.Fatalf("expected root message id, got %v", ticket.EmailReferences)
	}
}

func TestSLADueFollowsPriority(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	p := agent("u1", "support")

	urgent := h.create(t, p, CreateTicketInput{Priority: domain.TicketPriorityUrgent})
	if urgent.SLADue == nil || !urgent.SLADue.Equal(t0.Add(15*time.Minute)) {
		t.Fatalf("urgent due: got %v", urgent.SLADue)
	}
	if urgent.SLAID == nil || *urgent.SLAID != "sla-urgent" {
		t.Fatalf("urgent policy id: got %v", urgent.SLAID)
	}

	low := h.create(t, p, CreateTicketInput{Priority: domain.TicketPriorityLow})
	if !low.SLADue.Equal(t0.Add(480 * time.Minute)) {
		t.Fatalf("low due: got %v", low.SLADue)
	}

	h.clock.Advance(time.Hour)
	res, err := h.tickets.Update(context.Background(), p, low.ID, UpdateTicketInput{Priority: priorityPtr(domain.TicketPriorityUrgent)})
	if err != nil {
		t.Fatalf("update priority: %v", err)
	}
	want := t0.Add(time.Hour + 15*time.Minute)
	if !res.Ticket.SLADue.Equal(want) {
		t.Fatalf("due after priority change: got %v want %v", res.Ticket.SLADue, want)
	}
	if h.countEvents(low.ID, domain.EventPriorityChanged) != 1 {
		t.Fatalf("expected one priority_changed event")
	}
}

func TestMissingPolicyIsAWarning(t *testing.T) {
	h := newHarness(t, harnessOptions{policies: []domain.SLAPolicy{
		{ID: "sla-urgent", Priority: domain.TicketPriorityUrgent, FirstResponseMinutes: 15},
	}})
	res, err := h.tickets.Create(context.Background(), agent("u1", "support"), CreateTicketInput{
		Subject: "No policy",
		Type:    domain.TicketTypeSupport,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Ticket.SLADue != nil || res.Ticket.SLAID != nil {
		t.Fatalf("sla should be cleared, got %v %v", res.Ticket.SLADue, res.Ticket.SLAID)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != apperrors.WarnNoPolicyForPriority {
		t.Fatalf("unexpected warnings %+v", res.Warnings)
	}
}

func TestStatusTimestamps(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	p := agent("u1", "support")
	ctx := context.Background()
	ticket := h.create(t, p, CreateTicketInput{})

	h.clock.Advance(10 * time.Minute)
	res, err := h.tickets.Update(ctx, p, ticket.ID, UpdateTicketInput{Status: statusPtr(domain.TicketStatusInProgress)})
	if err != nil {
		t.Fatalf("to in_progress: %v", err)
	}
	firstResponse := t0.Add(10 * time.Minute)
	if res.Ticket.FirstResponseAt == nil || !res.Ticket.FirstResponseAt.Equal(firstResponse) {
		t.Fatalf("firstResponseAt: got %v", res.Ticket.FirstResponseAt)
	}
	if res.Ticket.ClosedAt != nil {
		t.Fatalf("closedAt set on open ticket")
	}

	h.clock.Advance(time.Hour)
	res, err = h.tickets.Update(ctx, p, ticket.ID, UpdateTicketInput{Status: statusPtr(domain.TicketStatusResolved)})
	if err != nil {
		t.Fatalf("to resolved: %v", err)
	}
	if res.Ticket.ClosedAt == nil {
		t.Fatalf("closedAt missing on resolved ticket")
	}

	h.clock.Advance(time.Hour)
	res, err = h.tickets.Update(ctx, p, ticket.ID, UpdateTicketInput{Status: statusPtr(domain.TicketStatusAck)})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if res.Ticket.ClosedAt != nil {
		t.Fatalf("closedAt must clear on reopen")
	}
	if !res.Ticket.FirstResponseAt.Equal(firstResponse) {
		t.Fatalf("firstResponseAt moved to %v", res.Ticket.FirstResponseAt)
	}
	if h.countEvents(ticket.ID, domain.EventStatusChanged) != 3 {
		t.Fatalf("expected three status_changed events")
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	p := agent("u1", "support")
	ctx := context.Background()
	ticket := h.create(t, p, CreateTicketInput{})

	if _, err := h.tickets.Update(ctx, p, ticket.ID, UpdateTicketInput{Status: statusPtr(domain.TicketStatusClosed)}); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := h.tickets.Update(ctx, p, ticket.ID, UpdateTicketInput{Status: statusPtr(domain.TicketStatusInProgress)})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.TicketStatus
		want     bool
	}{
		{domain.TicketStatusNew, domain.TicketStatusAck, true},
		{domain.TicketStatusNew, domain.TicketStatusClosed, true},
		{domain.TicketStatusAck, domain.TicketStatusNew, false},
		{domain.TicketStatusWaitingCustomer, domain.TicketStatusInProgress, true},
		{domain.TicketStatusResolved, domain.TicketStatusAck, true},
		{domain.TicketStatusResolved, domain.TicketStatusInProgress, false},
		{domain.TicketStatusClosed, domain.TicketStatusAck, true},
		{domain.TicketStatusClosed, domain.TicketStatusResolved, false},
		{domain.TicketStatusAck, domain.TicketStatusAck, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNoOpUpdateWritesNothing(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	p := agent("u1", "support")
	ticket := h.create(t, p, CreateTicketInput{})
	before := len(h.store.eventsFor(ticket.ID))

	_, err := h.tickets.Update(context.Background(), p, ticket.ID, UpdateTicketInput{
		Status:  statusPtr(domain.TicketStatusNew),
		Subject: strPtr("  " + ticket.Subject + " "),
		Team:    OptionalString{Set: true, Value: strPtr("support")},
	})
	if !errors.Is(err, apperrors.ErrNoOpUpdate) {
		t.Fatalf("expected no-op error, got %v", err)
	}
	if after := len(h.store.eventsFor(ticket.ID)); after != before {
		t.Fatalf("no-op update wrote %d events", after-before)
	}
	stored, _ := memTickets{h.store}.GetByID(context.Background(), ticket.ID)
	if stored.Version != ticket.Version {
		t.Fatalf("version bumped on no-op: %d", stored.Version)
	}
}

func TestVersionConflictOnlyWithLocking(t *testing.T) {
	stale := 7
	for _, locking := range []bool{false, true} {
		h := newHarness(t, harnessOptions{optimisticLocking: locking})
		p := agent("u1", "support")
		ticket := h.create(t, p, CreateTicketInput{})

		_, err := h.tickets.Update(context.Background(), p, ticket.ID, UpdateTicketInput{
			Priority:        priorityPtr(domain.TicketPriorityHigh),
			ExpectedVersion: &stale,
		})
		if locking && !errors.Is(err, apperrors.ErrVersionConflict) {
			t.Fatalf("locking: expected version conflict, got %v", err)
		}
		if !locking && err != nil {
			t.Fatalf("last write wins: unexpected error %v", err)
		}
	}
}

func TestUpdateOwnerAndTeamEvents(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	p := agent("u1", "support")
	ticket := h.create(t, p, CreateTicketInput{})

	if ticket.OwnerID == nil || *ticket.OwnerID != "u1" {
		t.Fatalf("precondition: creator in the routed team should own the ticket")
	}

	res, err := h.tickets.Update(context.Background(), p, ticket.ID, UpdateTicketInput{
		OwnerID: OptionalString{Set: true, Value: strPtr("u2")},
		Team:    OptionalString{Set: true, Value: strPtr("billing")},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if *res.Ticket.OwnerID != "u2" || *res.Ticket.Team != "billing" {
		t.Fatalf("fields not applied: %+v", res.Ticket)
	}
	evts := h.store.eventsFor(ticket.ID)
	if len(evts) != 3 || evts[1].Type != domain.EventOwnerChanged || evts[2].Type != domain.EventTeamChanged {
		t.Fatalf("unexpected events %+v", evts)
	}
}

func TestAccessDeniedForStranger(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ticket := h.create(t, agent("u1", "support"), CreateTicketInput{})

	_, err := h.tickets.Get(context.Background(), agent("u9", "billing"), ticket.ID)
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	other := agent("u1", "support")
	other.OrgID = "org-2"
	_, err = h.tickets.Get(context.Background(), other, ticket.ID)
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("cross-org read should be forbidden, got %v", err)
	}

	_, err = h.tickets.Get(context.Background(), agent("u1", "support"), "missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPurgeRequiresAdmin(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	ticket := h.create(t, agent("u1", "support"), CreateTicketInput{})

	deleter := agent("u1", "support")
	deleter.Permissions = domain.NewStringSet(domain.PermTicketsRead, domain.PermTicketsWrite, domain.PermTicketsDelete)
	if err := h.tickets.Purge(ctx, deleter, ticket.ID); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("non-admin purge: expected forbidden, got %v", err)
	}

	if err := h.tickets.Purge(ctx, admin("boss"), ticket.ID); err != nil {
		t.Fatalf("admin purge: %v", err)
	}
	if _, err := h.tickets.Get(ctx, admin("boss"), ticket.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("purged ticket still readable: %v", err)
	}
	if len(h.store.eventsFor(ticket.ID)) != 0 {
		t.Fatalf("events survived purge")
	}
	if len(h.sink.events) != 1 || h.sink.events[0].Type != domain.EventTicketPurged {
		t.Fatalf("expected ticket_purged on sink, got %+v", h.sink.events)
	}
}

func TestStaleUpdateOnlyWritesChangedFields(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	p := agent("u1", "support")
	ticket := h.create(t, p, CreateTicketInput{})
	staleSvc, _ := h.staleServices(t, ticket.ID)

	if _, err := h.tickets.Update(ctx, p, ticket.ID, UpdateTicketInput{Priority: priorityPtr(domain.TicketPriorityUrgent)}); err != nil {
		t.Fatalf("priority update: %v", err)
	}
	res, err := staleSvc.Update(ctx, p, ticket.ID, UpdateTicketInput{Subject: strPtr("new subject")})
	if err != nil {
		t.Fatalf("subject update: %v", err)
	}

	stored := h.stored(t, ticket.ID)
	if stored.Priority != domain.TicketPriorityUrgent || stored.Subject != "new subject" {
		t.Fatalf("stored priority=%s subject=%q", stored.Priority, stored.Subject)
	}
	if stored.SLAID == nil || *stored.SLAID != "sla-urgent" {
		t.Fatalf("sla of the earlier write was reverted: %v", stored.SLAID)
	}
	if stored.Version != 3 {
		t.Fatalf("expected version 3, got %d", stored.Version)
	}
	if res.Ticket.Priority != domain.TicketPriorityUrgent {
		t.Fatalf("result should reflect the stored row, got priority %s", res.Ticket.Priority)
	}
	if h.countEvents(ticket.ID, domain.EventPriorityChanged) != 1 || h.countEvents(ticket.ID, domain.EventSubjectChanged) != 1 {
		t.Fatalf("unexpected events %+v", h.store.eventsFor(ticket.ID))
	}
}

func TestStaleStatusUpdateKeepsFirstResponse(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	p := agent("u1", "support")
	ticket := h.create(t, p, CreateTicketInput{})
	staleSvc, _ := h.staleServices(t, ticket.ID)

	if _, err := h.tickets.Update(ctx, p, ticket.ID, UpdateTicketInput{Status: statusPtr(domain.TicketStatusAck)}); err != nil {
		t.Fatalf("ack: %v", err)
	}
	h.clock.Advance(time.Hour)
	if _, err := staleSvc.Update(ctx, p, ticket.ID, UpdateTicketInput{Status: statusPtr(domain.TicketStatusInProgress)}); err != nil {
		t.Fatalf("in progress: %v", err)
	}

	stored := h.stored(t, ticket.ID)
	if stored.Status != domain.TicketStatusInProgress {
		t.Fatalf("later status should win, got %s", stored.Status)
	}
	if stored.FirstResponseAt == nil || !stored.FirstResponseAt.Equal(t0) {
		t.Fatalf("firstResponseAt moved: %v", stored.FirstResponseAt)
	}
}
