// Package views holds the built-in ticket views and compiles view filters
// into repository predicates.
package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// Built-in view ids.
const (
	MyOpen      = "my-open"
	Breaching2h = "breaching-2h"
	Unassigned  = "unassigned"
	AllOpen     = "all-open"
	Breached    = "breached"
)

// Definition is a view that can be evaluated: a built-in or a saved view.
type Definition struct {
	ID      string
	Name    string
	Filters domain.ViewFilters
	BuiltIn bool
}

func statuses(values ...domain.TicketStatus) domain.StringList {
	out := make(domain.StringList, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

var activeStatuses = statuses(domain.TicketStatusNew, domain.TicketStatusAck, domain.TicketStatusInProgress)

var builtins = []Definition{
	{
		ID:      MyOpen,
		Name:    "My Open Tickets",
		Filters: domain.ViewFilters{Status: activeStatuses, AssignedToMe: true},
		BuiltIn: true,
	},
	{
		ID:   Breaching2h,
		Name: "Breaching <2h",
		Filters: domain.ViewFilters{
			Status: activeStatuses,
			SLADue: &domain.SLAComparator{Op: domain.SLAOpLTE, OffsetMinutes: 120},
		},
		BuiltIn: true,
	},
	{
		ID:   Unassigned,
		Name: "Unassigned",
		Filters: domain.ViewFilters{
			Status: statuses(domain.TicketStatusNew, domain.TicketStatusAck),
			Owner:  domain.NullableString{Set: true},
		},
		BuiltIn: true,
	},
	{
		ID:   AllOpen,
		Name: "All Open",
		Filters: domain.ViewFilters{
			Status: statuses(domain.TicketStatusNew, domain.TicketStatusAck, domain.TicketStatusInProgress, domain.TicketStatusWaitingCustomer),
		},
		BuiltIn: true,
	},
	{
		ID:      Breached,
		Name:    "SLA Breached",
		Filters: domain.ViewFilters{Breached: boolPtr(true)},
		BuiltIn: true,
	},
}

func boolPtr(b bool) *bool { return &b }

// Builtins returns the static view set in display order.
func Builtins() []Definition {
	out := make([]Definition, len(builtins))
	copy(out, builtins)
	return out
}

// Builtin looks up a built-in view by id.
func Builtin(id string) (Definition, bool) {
	for _, d := range builtins {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// FromSaved wraps a saved view as a Definition.
func FromSaved(v domain.SavedView) Definition {
	return Definition{ID: v.ID, Name: v.Name, Filters: v.Filters}
}

// Page carries pagination and ordering requested by the caller.
type Page struct {
	Page    int
	Limit   int
	Sort    string
	SortAsc bool
}

// Compile turns filters into a repository predicate for scope. "Me" and
// relative SLA offsets resolve against userID and now.
func Compile(filters domain.ViewFilters, scope domain.Scope, userID string, now time.Time, page Page) (repository.TicketFilter, error) {
	f := repository.TicketFilter{Scope: scope, BreachedAsOf: now}

	for _, s := range filters.Status {
		status := domain.TicketStatus(s)
		if !status.Valid() {
			return f, invalidFilter("status", s)
		}
		f.Statuses = append(f.Statuses, status)
	}
	for _, p := range filters.Priority {
		priority := domain.TicketPriority(p)
		if !priority.Valid() {
			return f, invalidFilter("priority", p)
		}
		f.Priorities = append(f.Priorities, priority)
	}
	for _, t := range filters.Type {
		typ := domain.TicketType(t)
		if !typ.Valid() {
			return f, invalidFilter("type", t)
		}
		f.Types = append(f.Types, typ)
	}
	if filters.Team != nil {
		team := strings.TrimSpace(*filters.Team)
		f.Team = &team
	}

	switch {
	case filters.Owner.Set && filters.Owner.Value == nil:
		f.OwnerUnassigned = true
	case filters.Owner.Set:
		owner := *filters.Owner.Value
		f.OwnerID = &owner
	}
	if filters.AssignedToMe {
		if f.OwnerUnassigned || (f.OwnerID != nil && *f.OwnerID != userID) {
			return f, apperrors.NewValidationError("assigned_to_me conflicts with owner_id", nil)
		}
		me := userID
		f.OwnerID = &me
	}

	if filters.SLADue != nil {
		switch filters.SLADue.Op {
		case domain.SLAOpLT, domain.SLAOpLTE, domain.SLAOpGT, domain.SLAOpGTE:
		default:
			return f, invalidFilter("sla_due.op", filters.SLADue.Op)
		}
		f.SLADue = &repository.TimeComparison{
			Op: filters.SLADue.Op,
			At: now.Add(time.Duration(filters.SLADue.OffsetMinutes) * time.Minute),
		}
	}
	if filters.Breached != nil {
		b := *filters.Breached
		f.Breached = &b
	}
	if term := strings.TrimSpace(filters.Search); term != "" {
		f.SearchTerm = &term
	}

	if page.Sort != "" {
		sort := repository.SortField(page.Sort)
		if !sort.Valid() {
			return f, invalidFilter("sort", page.Sort)
		}
		f.Sort = sort
		f.SortAsc = page.SortAsc
	}
	f.Limit = page.Limit
	f.Normalize()
	if page.Page > 1 {
		f.Offset = (page.Page - 1) * f.Limit
	}
	return f, nil
}

// Validate checks filters without evaluating them.
func Validate(filters domain.ViewFilters) error {
	_, err := Compile(filters, domain.Scope{}, "", time.Time{}, Page{})
	return err
}

func invalidFilter(field, value string) error {
	return apperrors.NewValidationError(fmt.Sprintf("invalid %s filter %q", field, value),
		map[string]any{"field": field, "value": value})
}
