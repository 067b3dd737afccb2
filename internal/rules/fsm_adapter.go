package rules

import "github.com/betracehq/traceguard/pkg/models"

// FSMAdapter exposes a RuleEngine through the pkg/fsm.RuleEngine
// interface, translating between the engine's CompiledRule and the plain
// models.Rule the lifecycle FSM deals with. It lets SafeRuleService drive
// rule Create/Update/Delete through the engine without the engine package
// depending on pkg/fsm.
type FSMAdapter struct {
	engine *RuleEngine
}

// NewFSMAdapter wraps a RuleEngine for use as a pkg/fsm.RuleEngine.
func NewFSMAdapter(engine *RuleEngine) *FSMAdapter {
	return &FSMAdapter{engine: engine}
}

func (a *FSMAdapter) LoadRule(rule models.Rule) error {
	return a.engine.LoadRule(rule)
}

func (a *FSMAdapter) GetRule(ruleID string) (models.Rule, bool) {
	compiled, ok := a.engine.GetRule(ruleID)
	if !ok {
		return models.Rule{}, false
	}
	return compiled.Rule, true
}

func (a *FSMAdapter) DeleteRule(ruleID string) {
	a.engine.DeleteRule(ruleID)
}

func (a *FSMAdapter) ListRules() []models.Rule {
	compiled := a.engine.ListRules()
	out := make([]models.Rule, 0, len(compiled))
	for _, c := range compiled {
		out = append(out, c.Rule)
	}
	return out
}
