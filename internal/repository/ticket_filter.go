package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// SortField is a whitelisted ticket ordering column.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortPriority  SortField = "priority"
	SortSLADue    SortField = "sla_due"
)

// Valid reports whether f is an allowed sort column.
func (f SortField) Valid() bool {
	switch f {
	case SortCreatedAt, SortUpdatedAt, SortPriority, SortSLADue:
		return true
	}
	return false
}

// TimeComparison compares a timestamp column against At.
type TimeComparison struct {
	Op string
	At time.Time
}

// Pagination bounds.
const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// TicketFilter is a concrete ticket predicate. Scope is mandatory and is
// always ANDed with the remaining conditions.
type TicketFilter struct {
	Scope           domain.Scope
	Statuses        []domain.TicketStatus
	Priorities      []domain.TicketPriority
	Types           []domain.TicketType
	Team            *string
	OwnerID         *string
	OwnerUnassigned bool
	SLADue          *TimeComparison
	// Breached selects tickets whose breach flag, as of BreachedAsOf,
	// equals the pointed value.
	Breached     *bool
	BreachedAsOf time.Time
	SearchTerm   *string
	Sort         SortField
	SortAsc      bool
	Limit        int
	Offset       int
}

// Normalize applies default ordering and pagination bounds.
func (f *TicketFilter) Normalize() {
	if !f.Sort.Valid() {
		f.Sort = SortCreatedAt
		f.SortAsc = false
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// whereClause renders the filter as SQL over the tickets table. Argument
// numbering starts at $1.
func (f TicketFilter) whereClause() (string, []any) {
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	clauses := []string{"t.org_id = " + next(f.Scope.OrgID)}
	if !f.Scope.All {
		user := next(f.Scope.UserID)
		teams := next(nonNilStrings(f.Scope.Teams))
		clauses = append(clauses, fmt.Sprintf(
			"(t.owner_id = %s OR t.team = ANY(%s) OR EXISTS (SELECT 1 FROM ticket_watchers w WHERE w.ticket_id = t.id AND w.user_id = %s))",
			user, teams, user))
	}

	if len(f.Statuses) > 0 {
		clauses = append(clauses, "t.status = ANY("+next(toStrings(f.Statuses))+")")
	}
	if len(f.Priorities) > 0 {
		clauses = append(clauses, "t.priority = ANY("+next(toStrings(f.Priorities))+")")
	}
	if len(f.Types) > 0 {
		clauses = append(clauses, "t.type = ANY("+next(toStrings(f.Types))+")")
	}
	if f.Team != nil {
		clauses = append(clauses, "t.team = "+next(*f.Team))
	}
	if f.OwnerUnassigned {
		clauses = append(clauses, "t.owner_id IS NULL")
	} else if f.OwnerID != nil {
		clauses = append(clauses, "t.owner_id = "+next(*f.OwnerID))
	}
	if f.SLADue != nil {
		clauses = append(clauses, fmt.Sprintf("t.sla_due %s %s", sqlOperator(f.SLADue.Op), next(f.SLADue.At)))
	}
	if f.Breached != nil {
		breached := fmt.Sprintf("(t.sla_due IS NOT NULL AND t.sla_due < %s AND t.status NOT IN ('resolved','closed'))", next(f.BreachedAsOf))
		if *f.Breached {
			clauses = append(clauses, breached)
		} else {
			clauses = append(clauses, "NOT "+breached)
		}
	}
	if f.SearchTerm != nil && strings.TrimSpace(*f.SearchTerm) != "" {
		search := next("%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(*f.SearchTerm))) + "%")
		clauses = append(clauses, fmt.Sprintf(`(LOWER(t.subject) LIKE %s ESCAPE '\' OR LOWER(t.description) LIKE %s ESCAPE '\')`, search, search))
	}

	return strings.Join(clauses, " AND "), args
}

// likeEscaper makes a search term match literally inside LIKE.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// orderClause renders ORDER BY with id as a stable tie-breaker.
func (f TicketFilter) orderClause() string {
	dir := "DESC"
	if f.SortAsc {
		dir = "ASC"
	}
	var column string
	switch f.Sort {
	case SortUpdatedAt:
		column = "t.updated_at"
	case SortPriority:
		column = "CASE t.priority WHEN 'low' THEN 1 WHEN 'normal' THEN 2 WHEN 'high' THEN 3 WHEN 'urgent' THEN 4 ELSE 0 END"
	case SortSLADue:
		return fmt.Sprintf("t.sla_due %s NULLS LAST, t.id %s", dir, dir)
	default:
		column = "t.created_at"
	}
	return fmt.Sprintf("%s %s, t.id %s", column, dir, dir)
}

// Matches evaluates the filter in memory. watching reports whether the
// scope's user watches the ticket.
func (f TicketFilter) Matches(t *domain.Ticket, watching bool) bool {
	if t.OrgID != f.Scope.OrgID {
		return false
	}
	if !f.Scope.All {
		visible := (t.OwnerID != nil && *t.OwnerID == f.Scope.UserID) ||
			(t.Team != nil && containsString(f.Scope.Teams, *t.Team)) ||
			watching
		if !visible {
			return false
		}
	}
	if len(f.Statuses) > 0 && !containsValue(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsValue(f.Priorities, t.Priority) {
		return false
	}
	if len(f.Types) > 0 && !containsValue(f.Types, t.Type) {
		return false
	}
	if f.Team != nil && (t.Team == nil || *t.Team != *f.Team) {
		return false
	}
	if f.OwnerUnassigned {
		if t.OwnerID != nil {
			return false
		}
	} else if f.OwnerID != nil && (t.OwnerID == nil || *t.OwnerID != *f.OwnerID) {
		return false
	}
	if f.SLADue != nil {
		if t.SLADue == nil || !compareTime(*t.SLADue, f.SLADue.Op, f.SLADue.At) {
			return false
		}
	}
	if f.Breached != nil && t.SLABreached(f.BreachedAsOf) != *f.Breached {
		return false
	}
	if f.SearchTerm != nil && strings.TrimSpace(*f.SearchTerm) != "" {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if !strings.Contains(strings.ToLower(t.Subject), term) && !strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func sqlOperator(op string) string {
	switch op {
	case domain.SLAOpLT:
		return "<"
	case domain.SLAOpGT:
		return ">"
	case domain.SLAOpGTE:
		return ">="
	default:
		return "<="
	}
}

func compareTime(v time.Time, op string, at time.Time) bool {
	switch op {
	case domain.SLAOpLT:
		return v.Before(at)
	case domain.SLAOpGT:
		return v.After(at)
	case domain.SLAOpGTE:
		return !v.Before(at)
	default:
		return !v.After(at)
	}
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func containsString(values []string, v string) bool {
	return containsValue(values, v)
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
