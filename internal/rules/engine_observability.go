package rules

import (
	"context"
	"runtime"
	"time"

	"github.com/betracehq/traceguard/internal/observability"
	"github.com/betracehq/traceguard/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EvaluateAllWithObservability evaluates all rules with full observability
func (e *RuleEngine) EvaluateAllWithObservability(ctx context.Context, span *models.Span) ([]string, error) {
	// Start parent span for batch evaluation
	ctx, parentSpan := observability.Tracer.Start(ctx, "rule_engine.evaluate_all",
		trace.WithAttributes(
			attribute.String("span.id", span.SpanID),
			attribute.String("span.service", span.ServiceName),
			attribute.String("span.operation", span.OperationName),
			attribute.Int("span.attributes_count", len(span.Attributes)),
		),
	)
	defer parentSpan.End()

	// Record span metrics (OTel)
	observability.RecordSpanProcessed(ctx)
	observability.RecordSpanAttributes(ctx, int64(len(span.Attributes)))
	observability.RecordSpanSize(ctx, int64(estimateSpanSize(span)))

	rules := e.enabledRules()

	// Rules are trace-level by design - convert the single span into a
	// one-span trace for this call site.
	spans := []*models.Span{span}

	// Evaluate each rule with tracing
	matches := make([]string, 0, 10)
	for _, compiled := range rules {
		// Start span for individual rule evaluation
		ruleCtx, ruleSpan := observability.StartRuleEvaluationSpan(ctx, compiled.Rule.ID, span.SpanID)

		startTime := time.Now()

		result, err := e.evaluateWithDeadline(ruleCtx, compiled.AST, spans)
		e.recordEvalOutcome(compiled.Rule.ID, err)

		duration := time.Since(startTime)

		if err != nil {
			// Record error (OTel)
			ruleSpan.SetAttributes(attribute.String("error", err.Error()))
			observability.RecordRuleEvaluation(ruleCtx, compiled.Rule.ID, "error", duration.Seconds())
			ruleSpan.End()
			continue
		}

		// Record result (OTel)
		resultStr := "no_match"
		if result {
			resultStr = "match"
		}
		observability.RecordRuleEvaluation(ruleCtx, compiled.Rule.ID, resultStr, duration.Seconds())
		ruleSpan.SetAttributes(attribute.Bool("match", result))

		if result {
			matches = append(matches, compiled.Rule.ID)
		}

		ruleSpan.End()
	}

	// Record memory usage
	recordMemoryMetrics()

	parentSpan.SetAttributes(
		attribute.Int("rules.evaluated", len(rules)),
		attribute.Int("rules.matched", len(matches)),
	)

	return matches, nil
}

// LoadRuleWithObservability loads a rule with full observability.
func (e *RuleEngine) LoadRuleWithObservability(ctx context.Context, rule models.Rule) error {
	ctx, span := observability.StartRuleLoadSpan(ctx, rule.ID)
	defer span.End()

	startTime := time.Now()

	ast, err := e.parseRuleDSL(rule.Expression)

	duration := time.Since(startTime)

	if err != nil {
		observability.RecordRuleLoadResult(ctx, span, rule.ID, err, duration)
		e.mu.Lock()
		e.parseErrors[rule.ID] = err
		e.mu.Unlock()
		return err
	}

	// Cache the compiled rule
	e.mu.Lock()
	e.rules[rule.ID] = &CompiledRule{
		Rule: rule,
		AST:  ast,
	}
	delete(e.parseErrors, rule.ID)
	activeCount := len(e.rules)
	e.mu.Unlock()

	// Update metrics
	observability.RecordRuleLoadResult(ctx, span, rule.ID, nil, duration)
	observability.RulesActive.Set(float64(activeCount))

	span.SetAttributes(attribute.Bool("rule.trace_level", true))

	return nil
}

// estimateSpanSize estimates the size of a span in bytes
func estimateSpanSize(span *models.Span) int {
	size := 200 // Base span overhead

	// Strings
	size += len(span.SpanID)
	size += len(span.TraceID)
	size += len(span.ParentSpanID)
	size += len(span.OperationName)
	size += len(span.ServiceName)
	size += len(span.Status)

	// Times
	size += 16 // StartTime + EndTime

	// Duration
	size += 8

	// Attributes
	for key, value := range span.Attributes {
		size += len(key) + len(value) + 16 // Key + Value + overhead
	}

	return size
}

// recordMemoryMetrics records memory usage metrics
func recordMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	observability.MemoryUsageBytes.WithLabelValues("rule_engine").Set(float64(m.Alloc))
	observability.GoroutinesActive.Set(float64(runtime.NumGoroutine()))

	if m.PauseNs[(m.NumGC+255)%256] > 0 {
		pauseNs := m.PauseNs[(m.NumGC+255)%256]
		observability.GCPauseDuration.Observe(float64(pauseNs) / 1e9)
	}
}
