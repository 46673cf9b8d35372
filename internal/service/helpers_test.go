package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/ticket-engine/internal/clock"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/sla"
)

const testOrg = "org-1"

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func defaultPolicies() []domain.SLAPolicy {
	return []domain.SLAPolicy{
		{ID: "sla-urgent", Priority: domain.TicketPriorityUrgent, FirstResponseMinutes: 15, ResolveMinutes: 240},
		{ID: "sla-high", Priority: domain.TicketPriorityHigh, FirstResponseMinutes: 60, ResolveMinutes: 480},
		{ID: "sla-normal", Priority: domain.TicketPriorityNormal, FirstResponseMinutes: 240, ResolveMinutes: 1440},
		{ID: "sla-low", Priority: domain.TicketPriorityLow, FirstResponseMinutes: 480, ResolveMinutes: 2880},
	}
}

type harness struct {
	store    *memStore
	clock    *clock.Manual
	sender   *fakeSender
	sink     *recordingSink
	tickets  *TicketService
	messages *MessageService
	watchers *WatcherService
	views    *ViewService
}

type harnessOptions struct {
	policies          []domain.SLAPolicy
	optimisticLocking bool
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	if opts.policies == nil {
		opts.policies = defaultPolicies()
	}
	h := &harness{
		store:  newMemStore(),
		clock:  clock.NewManual(t0),
		sender: &fakeSender{},
		sink:   &recordingSink{},
	}
	h.tickets = NewTicketService(TicketDependencies{
		TicketRepo:        memTickets{h.store},
		MessageRepo:       memMessages{h.store},
		WatcherRepo:       memWatchers{h.store},
		EventRepo:         memEvents{h.store},
		SLA:               sla.NewCalculator(sla.NewStaticSource(opts.policies)),
		Sink:              h.sink,
		Clock:             h.clock,
		MessageIDDomain:   "support.test",
		OptimisticLocking: opts.optimisticLocking,
	})
	h.messages = NewMessageService(MessageDependencies{
		TicketRepo:      memTickets{h.store},
		MessageRepo:     memMessages{h.store},
		WatcherRepo:     memWatchers{h.store},
		Sender:          h.sender,
		Clock:           h.clock,
		MailFrom:        "support@support.test",
		MessageIDDomain: "support.test",
	})
	h.watchers = NewWatcherService(memTickets{h.store}, memWatchers{h.store}, h.clock, nil)
	h.views = NewViewService(memViews{h.store}, memTickets{h.store}, h.clock, nil)
	return h
}

// staleServices builds ticket and message services whose reads of ticketID
// return the ticket as stored right now, no matter what commits later.
func (h *harness) staleServices(t *testing.T, ticketID string) (*TicketService, *MessageService) {
	t.Helper()
	snapshot, err := memTickets{h.store}.GetByID(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	repo := staleTickets{memTickets: memTickets{h.store}, snapshot: snapshot}
	tickets := NewTicketService(TicketDependencies{
		TicketRepo:  repo,
		MessageRepo: memMessages{h.store},
		WatcherRepo: memWatchers{h.store},
		EventRepo:   memEvents{h.store},
		SLA:         sla.NewCalculator(sla.NewStaticSource(defaultPolicies())),
		Clock:       h.clock,
	})
	messages := NewMessageService(MessageDependencies{
		TicketRepo:      repo,
		MessageRepo:     memMessages{h.store},
		WatcherRepo:     memWatchers{h.store},
		Sender:          h.sender,
		Clock:           h.clock,
		MailFrom:        "support@support.test",
		MessageIDDomain: "support.test",
	})
	return tickets, messages
}

func (h *harness) stored(t *testing.T, ticketID string) *domain.Ticket {
	t.Helper()
	ticket, err := memTickets{h.store}.GetByID(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("load %s: %v", ticketID, err)
	}
	return ticket
}

func agent(id string, teams ...string) *domain.Principal {
	return &domain.Principal{
		UserID:      id,
		OrgID:       testOrg,
		Roles:       domain.NewStringSet("agent"),
		Teams:       domain.NewStringSet(teams...),
		Permissions: domain.NewStringSet(domain.PermTicketsRead, domain.PermTicketsWrite),
	}
}

func admin(id string) *domain.Principal {
	return &domain.Principal{
		UserID:      id,
		OrgID:       testOrg,
		Roles:       domain.NewStringSet(domain.RoleAdmin),
		Teams:       domain.NewStringSet(),
		Permissions: domain.NewStringSet(),
	}
}

func (h *harness) create(t *testing.T, p *domain.Principal, input CreateTicketInput) *domain.Ticket {
	t.Helper()
	if input.Subject == "" {
		input.Subject = "Printer on fire"
	}
	if input.Type == "" {
		input.Type = domain.TicketTypeSupport
	}
	res, err := h.tickets.Create(context.Background(), p, input)
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return res.Ticket
}

func (h *harness) countEvents(ticketID string, typ domain.EventType) int {
	n := 0
	for _, e := range h.store.eventsFor(ticketID) {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func statusPtr(s domain.TicketStatus) *domain.TicketStatus { return &s }

func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }

func strPtr(s string) *string { return &s }
