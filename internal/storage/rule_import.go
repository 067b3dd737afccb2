package storage

import (
	"fmt"
	"strings"

	"github.com/betracehq/traceguard/internal/dsl"
	"github.com/betracehq/traceguard/pkg/models"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// yamlRuleFile mirrors the bulk-import document shape: a top-level list of
// rule definitions.
type yamlRuleFile struct {
	Rules []yamlRule `yaml:"rules"`
}

type yamlRule struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
	Condition   string `yaml:"condition"`
}

// ImportError reports why a single rule within a bulk import failed.
type ImportError struct {
	Index   int
	RuleID  string
	Message string
}

func (e ImportError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rule %d (%s): %s", e.Index, e.RuleID, e.Message)
	}
	return fmt.Sprintf("rule %d: %s", e.Index, e.Message)
}

// ImportYAML parses a YAML document containing a list of rules, validates
// and compiles each one's DSL expression, and returns the rules that
// passed alongside a per-rule error for each that failed. Import is
// transport-agnostic and partial-failure tolerant: a single malformed
// rule does not abort the rest of the batch.
func ImportYAML(data []byte, limits models.RuleLimits) ([]models.Rule, []ImportError) {
	var file yamlRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, []ImportError{{Message: fmt.Sprintf("invalid YAML: %v", err)}}
	}

	imported := make([]models.Rule, 0, len(file.Rules))
	var errs []ImportError

	for i, yr := range file.Rules {
		if yr.Name == "" {
			errs = append(errs, ImportError{Index: i, RuleID: yr.ID, Message: "missing required field: name"})
			continue
		}
		if yr.Condition == "" {
			errs = append(errs, ImportError{Index: i, RuleID: yr.ID, Message: "missing required field: condition"})
			continue
		}

		rule := models.Rule{
			ID:          yr.ID,
			Name:        yr.Name,
			Description: yr.Description,
			Severity:    strings.ToUpper(strings.TrimSpace(yr.Severity)),
			Expression:  strings.TrimSpace(yr.Condition),
			Enabled:     true,
		}
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		if rule.Severity == "" {
			rule.Severity = "MEDIUM"
		}

		if err := rule.Validate(limits); err != nil {
			errs = append(errs, ImportError{Index: i, RuleID: rule.ID, Message: err.Error()})
			continue
		}
		if _, err := dsl.Parse(rule.Expression); err != nil {
			errs = append(errs, ImportError{Index: i, RuleID: rule.ID, Message: fmt.Sprintf("invalid rule expression: %v", err)})
			continue
		}

		imported = append(imported, rule)
	}

	return imported, errs
}
