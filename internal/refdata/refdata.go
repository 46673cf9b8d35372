// Package refdata loads SLA policies and routing rules from a YAML file.
//
// Example:
//
//	sla_policies:
//	  - id: sla-urgent
//	    priority: urgent
//	    first_response_minutes: 15
//	    resolve_minutes: 240
//	routing_rules:
//	  - id: billing
//	    name: Billing questions
//	    order_index: 10
//	    conditions:
//	      types: [billing]
//	    actions:
//	      team: billing
package refdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// File is the parsed reference data.
type File struct {
	SLAPolicies  []domain.SLAPolicy
	RoutingRules []domain.RoutingRule
}

type rawFile struct {
	SLAPolicies  []domain.SLAPolicy `yaml:"sla_policies"`
	RoutingRules []rawRule          `yaml:"routing_rules"`
}

type rawRule struct {
	ID         string                   `yaml:"id"`
	Name       string                   `yaml:"name"`
	Conditions domain.RoutingConditions `yaml:"conditions"`
	Actions    domain.RoutingActions    `yaml:"actions"`
	OrderIndex int                      `yaml:"order_index"`
	IsActive   *bool                    `yaml:"is_active"`
}

// Load reads and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates YAML reference data. Unknown keys are
// rejected. Rules default to active.
func Parse(data []byte) (*File, error) {
	var raw rawFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}

	f := &File{SLAPolicies: raw.SLAPolicies}
	for _, r := range raw.RoutingRules {
		active := true
		if r.IsActive != nil {
			active = *r.IsActive
		}
		f.RoutingRules = append(f.RoutingRules, domain.RoutingRule{
			ID:         r.ID,
			Name:       r.Name,
			Conditions: r.Conditions,
			Actions:    r.Actions,
			OrderIndex: r.OrderIndex,
			IsActive:   active,
		})
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks ids, enum values and uniqueness.
func (f *File) Validate() error {
	var errs []error

	ids := map[string]bool{}
	priorities := map[domain.TicketPriority]string{}
	for i, p := range f.SLAPolicies {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("sla_policies[%d]: id is required", i))
		} else if ids[p.ID] {
			errs = append(errs, fmt.Errorf("sla_policies[%d]: duplicate id %q", i, p.ID))
		}
		ids[p.ID] = true
		if !p.Priority.Valid() {
			errs = append(errs, fmt.Errorf("sla_policies[%d]: unknown priority %q", i, p.Priority))
		} else if other, dup := priorities[p.Priority]; dup {
			errs = append(errs, fmt.Errorf("sla_policies[%d]: priority %s already covered by %q", i, p.Priority, other))
		}
		priorities[p.Priority] = p.ID
		if p.FirstResponseMinutes <= 0 {
			errs = append(errs, fmt.Errorf("sla_policies[%d]: first_response_minutes must be positive", i))
		}
		if p.ResolveMinutes < 0 {
			errs = append(errs, fmt.Errorf("sla_policies[%d]: resolve_minutes must not be negative", i))
		}
	}

	ruleIDs := map[string]bool{}
	for i, r := range f.RoutingRules {
		if r.ID == "" {
			errs = append(errs, fmt.Errorf("routing_rules[%d]: id is required", i))
		} else if ruleIDs[r.ID] {
			errs = append(errs, fmt.Errorf("routing_rules[%d]: duplicate id %q", i, r.ID))
		}
		ruleIDs[r.ID] = true
		if r.Actions.Team == "" {
			errs = append(errs, fmt.Errorf("routing_rules[%d]: actions.team is required", i))
		}
		for _, t := range r.Conditions.Types {
			if !t.Valid() {
				errs = append(errs, fmt.Errorf("routing_rules[%d]: unknown type %q", i, t))
			}
		}
		for _, c := range r.Conditions.Channels {
			if !c.ValidForTicket() {
				errs = append(errs, fmt.Errorf("routing_rules[%d]: unknown channel %q", i, c))
			}
		}
		for _, p := range r.Conditions.Priorities {
			if !p.Valid() {
				errs = append(errs, fmt.Errorf("routing_rules[%d]: unknown priority %q", i, p))
			}
		}
	}
	return errors.Join(errs...)
}
