package rules

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/betracehq/traceguard/internal/dsl"
	"github.com/betracehq/traceguard/pkg/models"
)

// createMassiveSpan creates a span with 1000 attributes (simulating real-world multi-MB spans)
func createMassiveSpan() *models.Span {
	attributes := make(map[string]string, 1000)

	// Simulate realistic large attributes
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("attr_%d", i)
		// Each value is 500-700 bytes (simulating large payloads, stack traces, etc.)
		attributes[key] = strings.Repeat(fmt.Sprintf("data%d", i), 100)
	}

	return &models.Span{
		Status:        "ERROR",
		Duration:      2000000000,
		ServiceName:   "payment-service",
		OperationName: "charge_card",
		TraceID:       "trace-123",
		SpanID:        "span-456",
		Attributes:    attributes, // ~0.7MB of attribute data
	}
}

// BenchmarkMassiveSpan_SingleRule measures evaluating one rule against a
// span carrying ~1MB of attributes.
func BenchmarkMassiveSpan_SingleRule(b *testing.B) {
	ast, err := dsl.Parse(`when { charge_card.status == "ERROR" and charge_card.where("attr_5" contains "data5") and charge_card.where("attr_10" contains "data10") }`)
	if err != nil {
		b.Fatalf("parse: %v", err)
	}

	span := createMassiveSpan()
	evaluator := dsl.NewEvaluator()
	spans := []*models.Span{span}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = evaluator.EvaluateRule(ast, spans)
	}
}

// BenchmarkMassiveSpan_StatusOnly measures a rule that touches a single
// well-known field, ignoring all 1000 attributes.
func BenchmarkMassiveSpan_StatusOnly(b *testing.B) {
	ast, err := dsl.Parse(`when { charge_card.status == "ERROR" }`)
	if err != nil {
		b.Fatalf("parse: %v", err)
	}

	span := createMassiveSpan()
	evaluator := dsl.NewEvaluator()
	spans := []*models.Span{span}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = evaluator.EvaluateRule(ast, spans)
	}
}

// BenchmarkMassiveSpan_RuleEngine measures the full engine with 10 loaded
// rules, each touching a couple of the span's 1000 attributes.
func BenchmarkMassiveSpan_RuleEngine(b *testing.B) {
	engine := NewRuleEngine()

	for i := 0; i < 10; i++ {
		rule := models.Rule{
			ID:         fmt.Sprintf("rule_%d", i),
			Expression: fmt.Sprintf(`when { charge_card.status == "ERROR" and charge_card.where("attr_%d" contains "data%d") }`, i, i),
			Enabled:    true,
		}
		_ = engine.LoadRule(rule)
	}

	span := createMassiveSpan()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.EvaluateAll(context.Background(), span)
	}
}

// BenchmarkMassiveSpan_Realistic_Production simulates production: 100
// rules, each against a massive span.
func BenchmarkMassiveSpan_Realistic_Production(b *testing.B) {
	engine := NewRuleEngine()

	for i := 0; i < 100; i++ {
		rule := models.Rule{
			ID: fmt.Sprintf("rule_%d", i),
			Expression: fmt.Sprintf(
				`when { charge_card.status == "ERROR" and charge_card.duration > 1000000000 and charge_card.where("attr_%d" contains "data%d") }`,
				i%10, i%10,
			),
			Enabled: true,
		}
		_ = engine.LoadRule(rule)
	}

	span := createMassiveSpan()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.EvaluateAll(context.Background(), span)
	}
}
