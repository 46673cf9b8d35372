package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

func TestSetClauseOnlyNamesPatchedColumns(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ticket := &domain.Ticket{Subject: "s", Status: domain.TicketStatusAck, UpdatedAt: now}

	var patch TicketPatch
	patch.Add(FieldSubject)
	patch.Add(FieldSubject)
	set, args := patch.setClause(ticket)
	if set != "subject=$1, updated_at=$2, version=version+1" {
		t.Fatalf("unexpected set clause %q", set)
	}
	if len(args) != 2 || args[0] != "s" {
		t.Fatalf("unexpected args %#v", args)
	}

	patch = TicketPatch{Fields: []TicketField{FieldStatus, FieldPriority}, AppendEmailReference: "<id@x>"}
	set, args = patch.setClause(ticket)
	for _, want := range []string{
		"status=$1",
		"first_response_at=COALESCE(first_response_at, $2)",
		"closed_at=$3",
		"priority=$4",
		"sla_id=$5",
		"sla_due=$6",
		"email_references=array_append(email_references, $7)",
		"updated_at=$8",
	} {
		if !strings.Contains(set, want) {
			t.Fatalf("set %q missing %q", set, want)
		}
	}
	if strings.Contains(set, "subject") || strings.Contains(set, "owner_id") {
		t.Fatalf("set %q writes unpatched columns", set)
	}
	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(args))
	}
}

func TestApplyLeavesUnpatchedFields(t *testing.T) {
	first := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)
	stored := &domain.Ticket{
		Subject:         "current",
		Priority:        domain.TicketPriorityUrgent,
		Status:          domain.TicketStatusAck,
		FirstResponseAt: &first,
		EmailReferences: []string{"<root>"},
		Version:         4,
	}
	writer := &domain.Ticket{
		Subject:         "stale",
		Priority:        domain.TicketPriorityLow,
		Status:          domain.TicketStatusInProgress,
		FirstResponseAt: &later,
		UpdatedAt:       later,
	}

	TicketPatch{Fields: []TicketField{FieldStatus}, AppendEmailReference: "<m1>"}.Apply(stored, writer)

	if stored.Status != domain.TicketStatusInProgress {
		t.Fatalf("status not applied: %s", stored.Status)
	}
	if stored.Subject != "current" || stored.Priority != domain.TicketPriorityUrgent {
		t.Fatalf("unpatched fields overwritten: %+v", stored)
	}
	if !stored.FirstResponseAt.Equal(first) {
		t.Fatalf("firstResponseAt overwritten: %v", stored.FirstResponseAt)
	}
	if strings.Join(stored.EmailReferences, ",") != "<root>,<m1>" {
		t.Fatalf("references %v", stored.EmailReferences)
	}
	if stored.Version != 5 || !stored.UpdatedAt.Equal(later) {
		t.Fatalf("version=%d updated_at=%v", stored.Version, stored.UpdatedAt)
	}
}
