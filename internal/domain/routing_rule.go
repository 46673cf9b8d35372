package domain

// RoutingConditions restrict when a rule matches. Empty lists match anything.
type RoutingConditions struct {
	Types      []TicketType     `json:"types,omitempty" yaml:"types,omitempty"`
	Channels   []Channel        `json:"channels,omitempty" yaml:"channels,omitempty"`
	Priorities []TicketPriority `json:"priorities,omitempty" yaml:"priorities,omitempty"`
}

// RoutingActions are applied when a rule matches.
type RoutingActions struct {
	Team    string  `json:"team" yaml:"team"`
	OwnerID *string `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
}

// RoutingRule is reference data evaluated in OrderIndex order, first match wins.
type RoutingRule struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Conditions RoutingConditions `yaml:"conditions"`
	Actions    RoutingActions    `yaml:"actions"`
	OrderIndex int               `yaml:"order_index"`
	IsActive   bool              `yaml:"is_active"`
}
