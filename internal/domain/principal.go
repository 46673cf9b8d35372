package domain

import "sort"

// RoleAdmin grants every permission and bypasses team/ownership scoping.
const RoleAdmin = "admin"

// Permission names checked by access control.
const (
	PermTicketsRead   = "tickets:read"
	PermTicketsWrite  = "tickets:write"
	PermTicketsDelete = "tickets:delete"
	PermViewsPublish  = "views:publish"
)

// StringSet is an unordered set of strings.
type StringSet map[string]struct{}

// NewStringSet builds a set, ignoring empty values.
func NewStringSet(values ...string) StringSet {
	set := make(StringSet, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

// Has reports whether v is in the set.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Slice returns the members sorted.
func (s StringSet) Slice() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Principal is the caller identity derived per request from its credential.
type Principal struct {
	UserID      string
	OrgID       string
	Roles       StringSet
	Teams       StringSet
	Permissions StringSet
}

// Scope is the visibility fragment ANDed into every ticket listing.
// All is set for admins: every ticket in OrgID. Otherwise a ticket is
// visible when owned by UserID, assigned to one of Teams, or watched by
// UserID.
type Scope struct {
	OrgID  string
	All    bool
	UserID string
	Teams  []string
}
