package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the OpenTelemetry tracer for the rule engine.
var Tracer = otel.Tracer("traceguard.rule-engine")

var tracer = Tracer

// StartRuleEvaluationSpan creates a traced span around a single rule
// evaluation.
func StartRuleEvaluationSpan(ctx context.Context, ruleID string, spanID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rule.evaluate",
		trace.WithAttributes(
			attribute.String("rule.id", ruleID),
			attribute.String("span.id", spanID),
			attribute.String("traceguard.operation", "rule_evaluation"),
		),
	)
}

// RecordRuleMatch records a rule evaluation result on the span and in
// Prometheus metrics.
func RecordRuleMatch(ctx context.Context, span trace.Span, ruleID string, matched bool, duration time.Duration) {
	result := "no_match"
	if matched {
		result = "match"
	}

	span.SetAttributes(
		attribute.Bool("rule.matched", matched),
		attribute.Float64("rule.evaluation_duration_ms", float64(duration.Microseconds())/1000.0),
	)

	RuleEvaluationDuration.WithLabelValues(ruleID, result).Observe(duration.Seconds())
	RuleEvaluationTotal.WithLabelValues(ruleID, result).Inc()

	if matched {
		span.AddEvent("rule.matched",
			trace.WithAttributes(
				attribute.String("rule.id", ruleID),
				attribute.String("match.reason", "pattern_satisfied"),
			),
		)
	}
}

// StartRuleLoadSpan creates a traced rule load operation.
func StartRuleLoadSpan(ctx context.Context, ruleID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rule.load",
		trace.WithAttributes(
			attribute.String("rule.id", ruleID),
			attribute.String("traceguard.operation", "rule_load"),
		),
	)
}

// RecordRuleLoadResult records rule load success or failure.
func RecordRuleLoadResult(ctx context.Context, span trace.Span, ruleID string, err error, duration time.Duration) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		RuleLoadTotal.WithLabelValues("error").Inc()
	} else {
		span.SetStatus(codes.Ok, "rule loaded successfully")
		RuleLoadTotal.WithLabelValues("success").Inc()
	}

	RuleLoadDuration.Observe(duration.Seconds())
}

// StartViolationSpan creates a traced span around recording a violation,
// carrying the attributes an OTLP consumer needs to correlate it with the
// trace that produced it.
func StartViolationSpan(ctx context.Context, ruleID, severity string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "violation.record",
		trace.WithAttributes(
			attribute.String("traceguard.violation.rule_id", ruleID),
			attribute.String("traceguard.violation.severity", severity),
		),
	)
}

// RecordViolationResult finalizes a violation span and updates counters.
func RecordViolationResult(span trace.Span, violationID string, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		ViolationsRecordedTotal.WithLabelValues("error").Inc()
		return
	}
	span.SetAttributes(attribute.String("traceguard.violation.id", violationID))
	span.SetStatus(codes.Ok, "violation recorded")
	ViolationsRecordedTotal.WithLabelValues("success").Inc()
}
