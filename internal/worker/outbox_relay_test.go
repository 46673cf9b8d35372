package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/ticket-engine/internal/clock"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/observability"
)

type fakeOutbox struct {
	mu      sync.Mutex
	events  []domain.TicketEvent
	markErr error
}

func (f *fakeOutbox) ListByTicket(context.Context, string) ([]domain.TicketEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) ListUnpublished(_ context.Context, limit int) ([]domain.TicketEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketEvent
	for _, e := range f.events {
		if e.PublishedAt == nil && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	for i := range f.events {
		for _, id := range ids {
			if f.events[i].ID == id {
				ts := at
				f.events[i].PublishedAt = &ts
			}
		}
	}
	return nil
}

func (f *fakeOutbox) published(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[i].PublishedAt != nil
}

type flakySink struct {
	failOn    string
	published []string
}

func (s *flakySink) Publish(_ context.Context, e domain.TicketEvent) error {
	if e.ID == s.failOn {
		return errors.New("redis down")
	}
	s.published = append(s.published, e.ID)
	return nil
}

func outbox(ids ...string) *fakeOutbox {
	f := &fakeOutbox{}
	for _, id := range ids {
		f.events = append(f.events, domain.TicketEvent{ID: id, TicketID: "t1", Type: domain.EventReplied})
	}
	return f
}

func TestRelayPublishesInOrderAndMarks(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := outbox("e1", "e2", "e3")
	sink := &flakySink{}
	metrics := observability.NewMetrics()
	relay := NewOutboxRelay(repo, sink, nil, RelayOptions{BatchSize: 2, Clock: clock.NewManual(now), Metrics: metrics})

	n, err := relay.RelayOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("first pass: n=%d err=%v", n, err)
	}
	n, err = relay.RelayOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second pass: n=%d err=%v", n, err)
	}
	if len(sink.published) != 3 || sink.published[0] != "e1" || sink.published[2] != "e3" {
		t.Fatalf("unexpected order %v", sink.published)
	}
	for _, e := range repo.events {
		if e.PublishedAt == nil || !e.PublishedAt.Equal(now) {
			t.Fatalf("event %s not marked", e.ID)
		}
	}
	if got := metrics.Snapshot().EventsRelayed; got != 3 {
		t.Fatalf("relayed metric %d", got)
	}
}

func TestRelayStopsAtFirstFailure(t *testing.T) {
	repo := outbox("e1", "e2", "e3")
	sink := &flakySink{failOn: "e2"}
	relay := NewOutboxRelay(repo, sink, nil, RelayOptions{})

	n, err := relay.RelayOnce(context.Background())
	if err == nil || n != 1 {
		t.Fatalf("expected partial pass, n=%d err=%v", n, err)
	}
	if repo.events[0].PublishedAt == nil || repo.events[1].PublishedAt != nil || repo.events[2].PublishedAt != nil {
		t.Fatalf("only e1 should be marked")
	}

	sink.failOn = ""
	if n, err := relay.RelayOnce(context.Background()); err != nil || n != 2 {
		t.Fatalf("retry pass: n=%d err=%v", n, err)
	}
}

func TestRelayRepublishesWhenMarkFails(t *testing.T) {
	repo := outbox("e1")
	repo.markErr = errors.New("db down")
	sink := &flakySink{}
	relay := NewOutboxRelay(repo, sink, nil, RelayOptions{})

	if _, err := relay.RelayOnce(context.Background()); err == nil {
		t.Fatalf("expected mark error")
	}
	repo.markErr = nil
	if _, err := relay.RelayOnce(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(sink.published) != 2 {
		t.Fatalf("expected at-least-once redelivery, got %v", sink.published)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	repo := outbox("e1")
	sink := &flakySink{}
	relay := NewOutboxRelay(repo, sink, nil, RelayOptions{Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for !repo.published(0) {
		select {
		case <-deadline:
			t.Fatalf("event never relayed")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("relay did not stop")
	}
}
