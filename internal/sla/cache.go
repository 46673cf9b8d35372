package sla

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

const cacheKeyPrefix = "sla:policy:"

// CachedSource is a Redis read-through cache in front of another source.
// Redis failures fall through to the wrapped source.
type CachedSource struct {
	next   PolicySource
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSource wraps next with a Redis cache.
func NewCachedSource(next PolicySource, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSource{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedSource) PolicyFor(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	if c.client == nil {
		return c.next.PolicyFor(ctx, priority)
	}
	key := cacheKeyPrefix + string(priority)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var policy domain.SLAPolicy
		if jsonErr := json.Unmarshal(raw, &policy); jsonErr == nil {
			return &policy, nil
		}
		c.logger.Warn("discarding corrupt sla cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("sla cache read failed", zap.String("key", key), zap.Error(err))
	}

	policy, err := c.next.PolicyFor(ctx, priority)
	if err != nil || policy == nil {
		return policy, err
	}
	if body, err := json.Marshal(policy); err == nil {
		if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
			c.logger.Warn("sla cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return policy, nil
}

// Invalidate drops every cached policy, e.g. after reference data reloads.
func (c *CachedSource) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	keys := make([]string, 0, 4)
	for _, p := range []domain.TicketPriority{domain.TicketPriorityLow, domain.TicketPriorityNormal, domain.TicketPriorityHigh, domain.TicketPriorityUrgent} {
		keys = append(keys, cacheKeyPrefix+string(p))
	}
	return c.client.Del(ctx, keys...).Err()
}
