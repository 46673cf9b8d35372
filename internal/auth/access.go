package auth

import "github.com/spec-kit/ticket-engine/internal/domain"

// Access control is the single authority for permission and visibility
// decisions. Every admin bypass in the service goes through these
// functions.

// IsAdmin reports whether the principal holds the admin role.
func IsAdmin(p *domain.Principal) bool {
	return p != nil && p.Roles.Has(domain.RoleAdmin)
}

// HasPermission is true for admins or when the permission was granted.
func HasPermission(p *domain.Principal, permission string) bool {
	if p == nil {
		return false
	}
	if IsAdmin(p) {
		return true
	}
	return p.Permissions.Has(permission)
}

// CanAccessTicket decides ticket visibility. watching is whether the
// principal is a registered watcher of the ticket. Ownership, team
// membership and watching are each sufficient on their own.
func CanAccessTicket(p *domain.Principal, t *domain.Ticket, watching bool) bool {
	if p == nil || t == nil {
		return false
	}
	if IsAdmin(p) {
		return true
	}
	if t.OrgID != p.OrgID {
		return false
	}
	if t.OwnerID != nil && *t.OwnerID == p.UserID {
		return true
	}
	if t.Team != nil && p.Teams.Has(*t.Team) {
		return true
	}
	return watching
}

// VisibilityScope is the base filter every list, search and view
// evaluation is ANDed with.
func VisibilityScope(p *domain.Principal) domain.Scope {
	if IsAdmin(p) {
		return domain.Scope{OrgID: p.OrgID, All: true}
	}
	return domain.Scope{
		OrgID:  p.OrgID,
		UserID: p.UserID,
		Teams:  p.Teams.Slice(),
	}
}
