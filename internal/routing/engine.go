// Package routing assigns newly created tickets to a team and, when
// possible, an owner.
package routing

import (
	"sort"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// Team names produced by the default rules.
const (
	TeamSupport   = "support"
	TeamBilling   = "billing"
	TeamLogistics = "logistics"
	TeamQuality   = "quality"
)

// Input is what routing looks at.
type Input struct {
	Type         domain.TicketType
	Channel      domain.Channel
	Priority     domain.TicketPriority
	CreatorID    string
	CreatorTeams domain.StringSet
}

// Decision is the routing outcome. OwnerID is nil when no owner applies.
type Decision struct {
	Team    string
	OwnerID *string
	RuleID  string
}

// DefaultRules maps ticket types to teams.
func DefaultRules() []domain.RoutingRule {
	return []domain.RoutingRule{
		{ID: "default-billing", Name: "billing", OrderIndex: 10, IsActive: true,
			Conditions: domain.RoutingConditions{Types: []domain.TicketType{domain.TicketTypeBilling}},
			Actions:    domain.RoutingActions{Team: TeamBilling}},
		{ID: "default-delivery", Name: "delivery", OrderIndex: 20, IsActive: true,
			Conditions: domain.RoutingConditions{Types: []domain.TicketType{domain.TicketTypeDelivery}},
			Actions:    domain.RoutingActions{Team: TeamLogistics}},
		{ID: "default-quality", Name: "quality and returns", OrderIndex: 30, IsActive: true,
			Conditions: domain.RoutingConditions{Types: []domain.TicketType{domain.TicketTypeQuality, domain.TicketTypeReturn}},
			Actions:    domain.RoutingActions{Team: TeamQuality}},
		{ID: "default-support", Name: "everything else", OrderIndex: 1000, IsActive: true,
			Actions: domain.RoutingActions{Team: TeamSupport}},
	}
}

// Engine evaluates routing rules top to bottom; the first match wins.
type Engine struct {
	rules []domain.RoutingRule
}

// NewEngine sorts rules by OrderIndex. With no rules it uses DefaultRules.
func NewEngine(rules []domain.RoutingRule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	sorted := append([]domain.RoutingRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})
	return &Engine{rules: sorted}
}

// Route picks the team and owner for a new ticket. A rule may name an
// owner outright; otherwise the creator owns the ticket only when they
// already belong to the resolved team.
func (e *Engine) Route(in Input) Decision {
	decision := Decision{Team: TeamSupport}
	for _, rule := range e.rules {
		if !rule.IsActive || rule.Actions.Team == "" || !matches(rule.Conditions, in) {
			continue
		}
		decision.Team = rule.Actions.Team
		decision.RuleID = rule.ID
		if rule.Actions.OwnerID != nil && *rule.Actions.OwnerID != "" {
			owner := *rule.Actions.OwnerID
			decision.OwnerID = &owner
			return decision
		}
		break
	}
	if in.CreatorID != "" && in.CreatorTeams.Has(decision.Team) {
		owner := in.CreatorID
		decision.OwnerID = &owner
	}
	return decision
}

// Rules returns the evaluation order.
func (e *Engine) Rules() []domain.RoutingRule {
	return append([]domain.RoutingRule(nil), e.rules...)
}

func matches(c domain.RoutingConditions, in Input) bool {
	return contains(c.Types, in.Type) && contains(c.Channels, in.Channel) && contains(c.Priorities, in.Priority)
}

func contains[T comparable](allowed []T, v T) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}
