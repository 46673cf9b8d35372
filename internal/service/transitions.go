package service

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// workingTargets is where ack, in_progress and waiting_customer may go.
func workingTargets() []domain.TicketStatus {
	return []domain.TicketStatus{
		domain.TicketStatusAck,
		domain.TicketStatusInProgress,
		domain.TicketStatusWaitingCustomer,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	}
}

// allowedTransitions is the status graph. Nothing returns to new; terminal
// states reopen through ack.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew: {
		domain.TicketStatusAck,
		domain.TicketStatusInProgress,
		domain.TicketStatusWaitingCustomer,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	},
	domain.TicketStatusAck:             workingTargets(),
	domain.TicketStatusInProgress:      workingTargets(),
	domain.TicketStatusWaitingCustomer: workingTargets(),
	domain.TicketStatusResolved:        {domain.TicketStatusClosed, domain.TicketStatusAck},
	domain.TicketStatusClosed:          {domain.TicketStatusAck},
}

// CanTransition reports whether a ticket may move from current to next.
func CanTransition(current, next domain.TicketStatus) bool {
	if current == next {
		return false
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// applyStatus moves t to next and maintains the timestamps tied to status:
// firstResponseAt is stamped once when leaving new, closedAt is set on
// entering a terminal state and cleared on reopen.
func applyStatus(t *domain.Ticket, next domain.TicketStatus, now time.Time) {
	prev := t.Status
	t.Status = next

	if prev == domain.TicketStatusNew && t.FirstResponseAt == nil {
		at := now
		t.FirstResponseAt = &at
	}
	if next.IsTerminal() {
		at := now
		t.ClosedAt = &at
	} else {
		t.ClosedAt = nil
	}
}
