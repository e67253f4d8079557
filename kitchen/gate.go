package kitchen

import "aichef"

// Gate decides whether a session holds enough information to propose recipes.
type Gate struct {
	MinPantryItems   int
	RequirePartySize bool
}

// NewGate builds the gate from agent configuration.
func NewGate(cfg aichef.AgentConfig) Gate {
	return Gate{MinPantryItems: cfg.MinPantryItems, RequirePartySize: cfg.RequirePartySize}
}

// Sufficient reports whether the pantry reached the threshold and, when required, the party size is known.
func (g Gate) Sufficient(s *Session) bool {
	if len(s.pantry) < g.MinPantryItems {
		return false
	}
	if g.RequirePartySize && !s.HasPartySize() {
		return false
	}
	return true
}
