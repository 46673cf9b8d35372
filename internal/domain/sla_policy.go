package domain

// SLAPolicy is reference data keyed by priority.
type SLAPolicy struct {
	ID                   string         `yaml:"id"`
	Priority             TicketPriority `yaml:"priority"`
	FirstResponseMinutes int            `yaml:"first_response_minutes"`
	ResolveMinutes       int            `yaml:"resolve_minutes"`
	// BusinessHoursID links a calendar. Due-date arithmetic does not read it.
	BusinessHoursID *string `yaml:"business_hours_id,omitempty"`
}
