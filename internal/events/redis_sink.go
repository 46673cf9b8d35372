package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

const publishTimeout = 5 * time.Second

// Publisher is the subset of *redis.Client used by RedisSink.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes events as JSON on a global channel and on the
// event's organization channel.
type RedisSink struct {
	client  Publisher
	channel string
	logger  *zap.Logger
}

// NewRedisSink creates a Redis pub/sub sink.
func NewRedisSink(client Publisher, channel string, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{client: client, channel: channel, logger: logger}
}

func (s *RedisSink) Publish(ctx context.Context, event domain.TicketEvent) error {
	body, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	for _, channel := range []string{s.channel, OrgChannel(s.channel, event.OrgID)} {
		if err := s.client.Publish(ctx, channel, body).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", channel, err)
		}
	}
	s.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	return nil
}

// MultiSink publishes to every sink in order and stops at the first error.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, event domain.TicketEvent) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
