package storage

import (
	"testing"

	"github.com/betracehq/traceguard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportYAML_Success(t *testing.T) {
	doc := `
rules:
  - id: rule-1
    name: Error Detection
    description: flags erroring checkouts
    severity: high
    condition: 'when { checkout.status == "ERROR" }'
  - name: Slow Query
    condition: 'when { database_query.where(duration > 1000000000) }'
`
	imported, errs := ImportYAML([]byte(doc), models.RuleLimits{})
	require.Empty(t, errs)
	require.Len(t, imported, 2)

	assert.Equal(t, "rule-1", imported[0].ID)
	assert.Equal(t, "HIGH", imported[0].Severity)
	assert.True(t, imported[0].Enabled)

	assert.NotEmpty(t, imported[1].ID) // generated
	assert.Equal(t, "MEDIUM", imported[1].Severity) // defaulted
}

func TestImportYAML_PartialFailure(t *testing.T) {
	doc := `
rules:
  - name: Missing Condition
  - id: bad-syntax
    name: Bad Syntax
    condition: 'when { request.status == }'
  - name: Valid Rule
    condition: 'when { request.status == "ERROR" }'
`
	imported, errs := ImportYAML([]byte(doc), models.RuleLimits{})
	require.Len(t, imported, 1)
	assert.Equal(t, "Valid Rule", imported[0].Name)

	require.Len(t, errs, 2)
	assert.Equal(t, 0, errs[0].Index)
	assert.Contains(t, errs[0].Message, "condition")
	assert.Equal(t, "bad-syntax", errs[1].RuleID)
	assert.Contains(t, errs[1].Message, "invalid rule expression")
}

func TestImportYAML_EnforcesLimits(t *testing.T) {
	doc := `
rules:
  - name: Too Long Name For This Limit
    condition: 'when { request.status == "ERROR" }'
`
	_, errs := ImportYAML([]byte(doc), models.RuleLimits{MaxNameLength: 5})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "exceeds limit")
}

func TestImportYAML_InvalidDocument(t *testing.T) {
	_, errs := ImportYAML([]byte("not: [valid yaml"), models.RuleLimits{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "invalid YAML")
}
