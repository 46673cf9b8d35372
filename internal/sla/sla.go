// Package sla computes first-response deadlines from priority policies.
// Due dates are flat minute offsets; business-hours calendars attached to a
// policy are carried but not applied.
package sla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// ErrNoPolicyForPriority is returned when no policy covers a priority.
var ErrNoPolicyForPriority = errors.New("no sla policy for priority")

// PolicySource looks up the policy for a priority. A missing policy is
// reported as (nil, nil); errors are reserved for lookup failures.
type PolicySource interface {
	PolicyFor(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error)
}

// Due is a computed deadline and the policy it came from.
type Due struct {
	PolicyID string
	At       time.Time
}

// Calculator turns priorities into due timestamps.
type Calculator struct {
	policies PolicySource
}

// NewCalculator builds a calculator over a policy source.
func NewCalculator(policies PolicySource) *Calculator {
	return &Calculator{policies: policies}
}

// ComputeDue returns from + firstResponseMinutes of the priority's policy.
func (c *Calculator) ComputeDue(ctx context.Context, priority domain.TicketPriority, from time.Time) (*Due, error) {
	if c == nil || c.policies == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPolicyForPriority, priority)
	}
	policy, err := c.policies.PolicyFor(ctx, priority)
	if err != nil {
		return nil, fmt.Errorf("lookup sla policy: %w", err)
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPolicyForPriority, priority)
	}
	return &Due{
		PolicyID: policy.ID,
		At:       from.Add(time.Duration(policy.FirstResponseMinutes) * time.Minute),
	}, nil
}

// IsBreached is the lazily derived breach flag: past due and still open.
func IsBreached(t *domain.Ticket, now time.Time) bool {
	return t.SLABreached(now)
}

// StaticSource serves policies from memory, keyed by priority.
type StaticSource map[domain.TicketPriority]domain.SLAPolicy

// NewStaticSource indexes policies by priority; later entries win.
func NewStaticSource(policies []domain.SLAPolicy) StaticSource {
	src := make(StaticSource, len(policies))
	for _, p := range policies {
		src[p.Priority] = p
	}
	return src
}

func (s StaticSource) PolicyFor(_ context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	p, ok := s[priority]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
