package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

type published struct {
	channel string
	body    []byte
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.sent = append(f.sent, published{channel: channel, body: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func sampleEvent() domain.TicketEvent {
	user := "u1"
	return domain.TicketEvent{
		ID:        "e1",
		TicketID:  "t1",
		OrgID:     "org-9",
		Type:      domain.EventStatusChanged,
		Data:      map[string]any{"from": "new", "to": "ack"},
		UserID:    &user,
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRedisSinkPublishesGlobalAndOrgChannels(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedisSink(pub, "ticket-events", nil)

	if err := sink.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(pub.sent) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(pub.sent))
	}
	if pub.sent[0].channel != "ticket-events" || pub.sent[1].channel != "ticket-events:org-9" {
		t.Fatalf("unexpected channels: %s, %s", pub.sent[0].channel, pub.sent[1].channel)
	}

	var env Envelope
	if err := json.Unmarshal(pub.sent[0].body, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ID != "e1" || env.Type != domain.EventStatusChanged || env.Data["to"] != "ack" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestRedisSinkPropagatesErrors(t *testing.T) {
	sink := NewRedisSink(&fakePublisher{err: errors.New("down")}, "ticket-events", nil)
	if err := sink.Publish(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDispatcherRoutesByTypeAndWildcard(t *testing.T) {
	d := NewDispatcher(nil)
	var typed, all int
	d.Subscribe(domain.EventStatusChanged, func(context.Context, domain.TicketEvent) error {
		typed++
		return errors.New("handler failure is logged only")
	})
	d.Subscribe(domain.EventReplied, func(context.Context, domain.TicketEvent) error {
		t.Fatal("wrong handler invoked")
		return nil
	})
	d.SubscribeAll(func(context.Context, domain.TicketEvent) error {
		all++
		return nil
	})

	if err := d.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if typed != 1 || all != 1 {
		t.Fatalf("typed=%d all=%d", typed, all)
	}
}

type recordingSink struct {
	got []string
	err error
}

func (r *recordingSink) Publish(_ context.Context, event domain.TicketEvent) error {
	r.got = append(r.got, event.ID)
	return r.err
}

func TestMultiSinkStopsAtFirstError(t *testing.T) {
	first := &recordingSink{err: errors.New("boom")}
	second := &recordingSink{}
	err := MultiSink{first, nil, second}.Publish(context.Background(), sampleEvent())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(first.got) != 1 || len(second.got) != 0 {
		t.Fatalf("first=%v second=%v", first.got, second.got)
	}
}

func TestNewEnvelopeDefaultsData(t *testing.T) {
	evt := sampleEvent()
	evt.Data = nil
	if env := NewEnvelope(evt); env.Data == nil {
		t.Fatal("expected empty data map")
	}
}
