package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// SavedView is a persisted, reusable ticket filter. Public views are visible
// org-wide and have no UserID; every other view records its owner in UserID
// and, when Team is set, is also shared with that team.
type SavedView struct {
	ID        string
	OrgID     string
	Name      string
	Filters   ViewFilters
	Team      *string
	UserID    *string
	IsPublic  bool
	CreatedBy string
	CreatedAt time.Time
}

// SLAComparator compares slaDue against now + OffsetMinutes.
type SLAComparator struct {
	Op            string `json:"op"`
	OffsetMinutes int    `json:"offset_minutes"`
}

// SLA comparator operators.
const (
	SLAOpLT  = "lt"
	SLAOpLTE = "lte"
	SLAOpGT  = "gt"
	SLAOpGTE = "gte"
)

// ViewFilters is the structured predicate stored on a saved view.
type ViewFilters struct {
	Status       StringList     `json:"status,omitempty"`
	Priority     StringList     `json:"priority,omitempty"`
	Type         StringList     `json:"type,omitempty"`
	Team         *string        `json:"team,omitempty"`
	Owner        NullableString `json:"owner_id,omitzero"`
	AssignedToMe bool           `json:"assigned_to_me,omitempty"`
	SLADue       *SLAComparator `json:"sla_due,omitempty"`
	Breached     *bool          `json:"breached,omitempty"`
	Search       string         `json:"search,omitempty"`
}

// StringList decodes either a JSON string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		if single == "" {
			*l = nil
			return nil
		}
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// NullableString distinguishes an absent field from an explicit null.
// Set with a nil Value means "must be null".
type NullableString struct {
	Set   bool
	Value *string
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n NullableString) MarshalJSON() ([]byte, error) {
	if !n.Set || n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// IsZero lets encoders treat an unset value as omitted.
func (n NullableString) IsZero() bool {
	return !n.Set
}
