package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/mail"
	"github.com/spec-kit/ticket-engine/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repositories. Writes
// apply the row change and its events together, like the real transaction.
type memStore struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	messages []domain.TicketMessage
	events   []domain.TicketEvent
	watchers map[string]map[string]domain.TicketWatcher
	views    map[string]domain.SavedView
}

func newMemStore() *memStore {
	return &memStore{
		tickets:  map[string]*domain.Ticket{},
		watchers: map[string]map[string]domain.TicketWatcher{},
		views:    map[string]domain.SavedView{},
	}
}

func (m *memStore) put(t *domain.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t.Clone()
}

func (m *memStore) eventsFor(ticketID string) []domain.TicketEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketEvent
	for _, e := range m.events {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out
}

// update applies only the patched columns to the stored row and refreshes t
// from it, like the UPDATE ... RETURNING in the Postgres repository.
func (m *memStore) update(t *domain.Ticket, patch repository.TicketPatch, expectedVersion int) error {
	stored, ok := m.tickets[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if expectedVersion > 0 && stored.Version != expectedVersion {
		return repository.ErrVersionMismatch
	}
	patch.Apply(stored, t.Clone())
	*t = *stored.Clone()
	return nil
}

type memTickets struct{ *memStore }

func (r memTickets) Create(_ context.Context, t *domain.Ticket, events []domain.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[t.ID] = t.Clone()
	r.events = append(r.events, events...)
	return nil
}

func (r memTickets) Update(_ context.Context, t *domain.Ticket, patch repository.TicketPatch, expectedVersion int, events []domain.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.update(t, patch, expectedVersion); err != nil {
		return err
	}
	r.events = append(r.events, events...)
	return nil
}

func (r memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (r memTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	filter.Normalize()
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Ticket
	for _, t := range r.tickets {
		_, watching := r.watchers[t.ID][filter.Scope.UserID]
		if filter.Matches(t, watching) {
			matched = append(matched, *t.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	if filter.Offset >= total {
		return []domain.Ticket{}, total, nil
	}
	end := min(filter.Offset+filter.Limit, total)
	return matched[filter.Offset:end], total, nil
}

func (r memTickets) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	delete(r.watchers, id)
	kept := r.events[:0]
	for _, e := range r.events {
		if e.TicketID != id {
			kept = append(kept, e)
		}
	}
	r.events = kept
	return nil
}

// staleTickets serves reads of one ticket from a snapshot taken before later
// writers committed. Writes go to the shared store.
type staleTickets struct {
	memTickets
	snapshot *domain.Ticket
}

func (r staleTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if r.snapshot != nil && r.snapshot.ID == id {
		return r.snapshot.Clone(), nil
	}
	return r.memTickets.GetByID(ctx, id)
}

type memMessages struct{ *memStore }

func (r memMessages) Append(_ context.Context, msg *domain.TicketMessage, t *domain.Ticket, patch repository.TicketPatch, expectedVersion int, events []domain.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t != nil && !patch.Empty() {
		if err := r.update(t, patch, expectedVersion); err != nil {
			return err
		}
	}
	r.messages = append(r.messages, *msg)
	r.events = append(r.events, events...)
	return nil
}

func (r memMessages) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.TicketMessage{}
	for _, m := range r.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

// brokenMessages fails every append, as if the transaction aborted.
type brokenMessages struct {
	memMessages
	err error
}

func (r brokenMessages) Append(context.Context, *domain.TicketMessage, *domain.Ticket, repository.TicketPatch, int, []domain.TicketEvent) error {
	return r.err
}

type memWatchers struct{ *memStore }

func (r memWatchers) Add(_ context.Context, w *domain.TicketWatcher, event domain.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.watchers[w.TicketID]
	if set == nil {
		set = map[string]domain.TicketWatcher{}
		r.watchers[w.TicketID] = set
	}
	if _, ok := set[w.UserID]; ok {
		return repository.ErrDuplicate
	}
	set[w.UserID] = *w
	r.events = append(r.events, event)
	return nil
}

func (r memWatchers) Remove(_ context.Context, ticketID, userID string, event domain.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.watchers[ticketID][userID]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.watchers[ticketID], userID)
	r.events = append(r.events, event)
	return nil
}

func (r memWatchers) Exists(_ context.Context, ticketID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.watchers[ticketID][userID]
	return ok, nil
}

func (r memWatchers) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketWatcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.TicketWatcher{}
	for _, w := range r.watchers[ticketID] {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type memEvents struct{ *memStore }

func (r memEvents) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketEvent, error) {
	return r.eventsFor(ticketID), nil
}

func (r memEvents) ListUnpublished(_ context.Context, limit int) ([]domain.TicketEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketEvent
	for _, e := range r.events {
		if e.PublishedAt == nil && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memEvents) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		for _, id := range ids {
			if r.events[i].ID == id {
				ts := at
				r.events[i].PublishedAt = &ts
			}
		}
	}
	return nil
}

type memViews struct{ *memStore }

func (r memViews) Create(_ context.Context, v *domain.SavedView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[v.ID] = *v
	return nil
}

func (r memViews) GetByID(_ context.Context, id string) (*domain.SavedView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &v, nil
}

func (r memViews) ListVisible(_ context.Context, orgID, userID string, teams []string) ([]domain.SavedView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	teamSet := domain.NewStringSet(teams...)
	out := []domain.SavedView{}
	for _, v := range r.views {
		if v.OrgID != orgID {
			continue
		}
		owned := v.CreatedBy == userID || (v.UserID != nil && *v.UserID == userID)
		if v.IsPublic || owned || (v.Team != nil && teamSet.Has(*v.Team)) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memViews) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.views[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.views, id)
	return nil
}

type fakeSender struct {
	err  error
	sent []mail.Message
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.TicketEvent
}

func (s *recordingSink) Publish(_ context.Context, e domain.TicketEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}
