package repository

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// TicketField names a group of ticket columns written together.
type TicketField string

const (
	// FieldStatus covers status, first_response_at and closed_at.
	FieldStatus TicketField = "status"
	// FieldPriority covers priority, sla_id and sla_due.
	FieldPriority TicketField = "priority"
	FieldOwner    TicketField = "owner_id"
	FieldTeam     TicketField = "team"
	FieldSubject  TicketField = "subject"
	FieldType     TicketField = "type"
)

// TicketPatch lists what a write changes. Columns outside the patch keep
// their stored values, so a writer holding an older read only overwrites
// the fields it changed.
type TicketPatch struct {
	Fields []TicketField
	// AppendEmailReference is appended to the stored email_references.
	AppendEmailReference string
}

// Add records f once.
func (p *TicketPatch) Add(f TicketField) {
	if !p.Has(f) {
		p.Fields = append(p.Fields, f)
	}
}

// Has reports whether f is part of the patch.
func (p TicketPatch) Has(f TicketField) bool {
	for _, existing := range p.Fields {
		if existing == f {
			return true
		}
	}
	return false
}

// Empty reports whether the patch writes nothing.
func (p TicketPatch) Empty() bool {
	return len(p.Fields) == 0 && p.AppendEmailReference == ""
}

// setClause renders the SET list for t. Placeholders start at $1; updated_at
// and version are always written. first_response_at is only ever set once.
func (p TicketPatch) setClause(t *domain.Ticket) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(expr string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	for _, f := range p.Fields {
		switch f {
		case FieldStatus:
			add("status=$%d", t.Status)
			add("first_response_at=COALESCE(first_response_at, $%d)", t.FirstResponseAt)
			add("closed_at=$%d", t.ClosedAt)
		case FieldPriority:
			add("priority=$%d", t.Priority)
			add("sla_id=$%d", t.SLAID)
			add("sla_due=$%d", t.SLADue)
		case FieldOwner:
			add("owner_id=$%d", t.OwnerID)
		case FieldTeam:
			add("team=$%d", t.Team)
		case FieldSubject:
			add("subject=$%d", t.Subject)
		case FieldType:
			add("type=$%d", t.Type)
		}
	}
	if p.AppendEmailReference != "" {
		add("email_references=array_append(email_references, $%d)", p.AppendEmailReference)
	}
	add("updated_at=$%d", t.UpdatedAt)
	sets = append(sets, "version=version+1")
	return strings.Join(sets, ", "), args
}

// Apply copies the patched columns of src onto dst the way the UPDATE
// does, bumping dst's version.
func (p TicketPatch) Apply(dst, src *domain.Ticket) {
	for _, f := range p.Fields {
		switch f {
		case FieldStatus:
			dst.Status = src.Status
			if dst.FirstResponseAt == nil {
				dst.FirstResponseAt = src.FirstResponseAt
			}
			dst.ClosedAt = src.ClosedAt
		case FieldPriority:
			dst.Priority = src.Priority
			dst.SLAID = src.SLAID
			dst.SLADue = src.SLADue
		case FieldOwner:
			dst.OwnerID = src.OwnerID
		case FieldTeam:
			dst.Team = src.Team
		case FieldSubject:
			dst.Subject = src.Subject
		case FieldType:
			dst.Type = src.Type
		}
	}
	if p.AppendEmailReference != "" {
		dst.EmailReferences = append(append([]string(nil), dst.EmailReferences...), p.AppendEmailReference)
	}
	dst.UpdatedAt = src.UpdatedAt
	dst.Version++
}
