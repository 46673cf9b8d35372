package dto

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/views"
)

// CreateViewRequest payload.
type CreateViewRequest struct {
	Name     string             `json:"name"`
	Filters  domain.ViewFilters `json:"filters"`
	Team     *string            `json:"team"`
	IsPublic bool               `json:"is_public"`
}

// SearchRequest evaluates inline filters.
type SearchRequest struct {
	Filters domain.ViewFilters `json:"filters"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
	Sort    string             `json:"sort"`
	Order   string             `json:"order"`
}

// ViewResponse describes a built-in or saved view.
type ViewResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Filters   domain.ViewFilters `json:"filters"`
	BuiltIn   bool               `json:"built_in"`
	Team      *string            `json:"team,omitempty"`
	IsPublic  bool               `json:"is_public"`
	CreatedBy string             `json:"created_by,omitempty"`
	CreatedAt *time.Time         `json:"created_at,omitempty"`
}

// View maps a view definition.
func View(d views.Definition) ViewResponse {
	return ViewResponse{ID: d.ID, Name: d.Name, Filters: d.Filters, BuiltIn: d.BuiltIn, IsPublic: d.BuiltIn}
}

// Views maps view definitions.
func Views(items []views.Definition) []ViewResponse {
	out := make([]ViewResponse, 0, len(items))
	for _, d := range items {
		out = append(out, View(d))
	}
	return out
}

// SavedView maps a stored view.
func SavedView(v *domain.SavedView) ViewResponse {
	createdAt := v.CreatedAt
	return ViewResponse{
		ID:        v.ID,
		Name:      v.Name,
		Filters:   v.Filters,
		Team:      v.Team,
		IsPublic:  v.IsPublic,
		CreatedBy: v.CreatedBy,
		CreatedAt: &createdAt,
	}
}

// ViewTicketsResponse is one page of a view evaluation.
type ViewTicketsResponse struct {
	Items []TicketResponse `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	AsOf  time.Time        `json:"as_of"`
}
