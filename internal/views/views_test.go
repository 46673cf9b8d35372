package views

import (
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func supportAgent() domain.Scope {
	return domain.Scope{OrgID: "o", UserID: "u1", Teams: []string{"support"}}
}

func TestBuiltinsAreStable(t *testing.T) {
	ids := []string{}
	for _, d := range Builtins() {
		if !d.BuiltIn {
			t.Fatalf("%s should be built in", d.ID)
		}
		ids = append(ids, d.ID)
	}
	want := []string{MyOpen, Breaching2h, Unassigned, AllOpen, Breached}
	if len(ids) != len(want) {
		t.Fatalf("ids: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids: %v", ids)
		}
	}
	if _, ok := Builtin("nope"); ok {
		t.Fatal("unexpected builtin")
	}
}

func TestUnassignedKeepsScope(t *testing.T) {
	def, _ := Builtin(Unassigned)
	f, err := Compile(def.Filters, supportAgent(), "u1", now, Page{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if f.Scope.All || f.Scope.UserID != "u1" || len(f.Scope.Teams) != 1 {
		t.Fatalf("scope lost: %+v", f.Scope)
	}
	if !f.OwnerUnassigned || len(f.Statuses) != 2 {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if f.Sort != repository.SortCreatedAt || f.SortAsc {
		t.Fatalf("default order must be created_at desc: %+v", f)
	}

	team := "support"
	other := "billing"
	mine := &domain.Ticket{OrgID: "o", Status: domain.TicketStatusNew, Team: &team}
	foreign := &domain.Ticket{OrgID: "o", Status: domain.TicketStatusNew, Team: &other}
	owned := &domain.Ticket{OrgID: "o", Status: domain.TicketStatusAck, Team: &team, OwnerID: &other}
	if !f.Matches(mine, false) {
		t.Fatal("unassigned support ticket should match")
	}
	if f.Matches(foreign, false) {
		t.Fatal("ticket outside scope must not match")
	}
	if f.Matches(owned, false) {
		t.Fatal("owned ticket must not match")
	}
}

func TestMyOpenResolvesMe(t *testing.T) {
	def, _ := Builtin(MyOpen)
	f, err := Compile(def.Filters, supportAgent(), "u1", now, Page{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if f.OwnerID == nil || *f.OwnerID != "u1" {
		t.Fatalf("owner: %+v", f.OwnerID)
	}
}

func TestBreaching2hUsesNow(t *testing.T) {
	def, _ := Builtin(Breaching2h)
	f, err := Compile(def.Filters, supportAgent(), "u1", now, Page{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if f.SLADue == nil || f.SLADue.Op != domain.SLAOpLTE || !f.SLADue.At.Equal(now.Add(2*time.Hour)) {
		t.Fatalf("sla due: %+v", f.SLADue)
	}
}

func TestCompilePagination(t *testing.T) {
	f, err := Compile(domain.ViewFilters{}, supportAgent(), "u1", now, Page{Page: 3, Limit: 10, Sort: "priority", SortAsc: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if f.Limit != 10 || f.Offset != 20 || f.Sort != repository.SortPriority || !f.SortAsc {
		t.Fatalf("unexpected paging: %+v", f)
	}
}

func TestCompileRejectsBadValues(t *testing.T) {
	me := "u2"
	cases := map[string]struct {
		filters domain.ViewFilters
		page    Page
	}{
		"status":   {filters: domain.ViewFilters{Status: domain.StringList{"open"}}},
		"priority": {filters: domain.ViewFilters{Priority: domain.StringList{"asap"}}},
		"type":     {filters: domain.ViewFilters{Type: domain.StringList{"gadget"}}},
		"sla op":   {filters: domain.ViewFilters{SLADue: &domain.SLAComparator{Op: "eq"}}},
		"sort":     {page: Page{Sort: "subject"}},
		"conflict": {filters: domain.ViewFilters{AssignedToMe: true, Owner: domain.NullableString{Set: true, Value: &me}}},
	}
	for name, tc := range cases {
		_, err := Compile(tc.filters, supportAgent(), "u1", now, tc.page)
		var de *apperrors.DomainError
		if !errors.As(err, &de) || de.Code != apperrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}
