package models

import "time"

// Rule represents a behavioral assertion rule over distributed traces.
type Rule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`   // HIGH, MEDIUM, LOW, CRITICAL
	Expression  string    `json:"expression"` // rule DSL source
	LuaCode     string    `json:"luaCode"`    // compiled Lua code (legacy rules)
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// LifecycleState mirrors the rule's fsm.RuleLifecycleState at the time
	// it was last observed. It is informational only; the registry FSM
	// remains the source of truth.
	LifecycleState string `json:"lifecycleState,omitempty"`
}
