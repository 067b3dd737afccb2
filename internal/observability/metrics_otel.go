package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetry metrics for the rule engine and violation pipeline,
// platform-agnostic: works with any OTLP-compatible backend, unlike the
// Prometheus-specific vectors in metrics.go.

var (
	meter = otel.Meter("traceguard.rule-engine")

	metricsOnce sync.Once

	// Rule Engine Performance Metrics
	ruleEvaluationDuration metric.Float64Histogram
	ruleEvaluationTotal    metric.Int64Counter
	spansProcessedTotal    metric.Int64Counter
	spanAttributesCount    metric.Int64Histogram
	spanSizeBytes          metric.Int64Histogram
	ruleLoadDuration       metric.Float64Histogram
	ruleLoadTotal          metric.Int64Counter
	rulesActive            metric.Int64UpDownCounter

	// Lazy Evaluation Metrics
	lazyFieldsLoaded metric.Int64Histogram
	lazyCacheHits    metric.Int64Counter

	// Violation Pipeline Metrics
	violationsRecordedTotal metric.Int64Counter
	traceAccumulatorSpans   metric.Int64Counter
)

// InitMetrics initializes all OpenTelemetry metrics. Call once during
// application startup.
func InitMetrics() error {
	var err error
	metricsOnce.Do(func() {
		ruleEvaluationDuration, err = meter.Float64Histogram(
			"traceguard.rule_evaluation_duration",
			metric.WithDescription("Time taken to evaluate a single rule against a trace"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return
		}

		ruleEvaluationTotal, err = meter.Int64Counter(
			"traceguard.rule_evaluation_total",
			metric.WithDescription("Total number of rule evaluations"),
		)
		if err != nil {
			return
		}

		spansProcessedTotal, err = meter.Int64Counter(
			"traceguard.rule_engine_spans_processed_total",
			metric.WithDescription("Total number of spans processed by the rule engine"),
		)
		if err != nil {
			return
		}

		spanAttributesCount, err = meter.Int64Histogram(
			"traceguard.rule_engine_span_attributes",
			metric.WithDescription("Number of attributes in processed spans"),
		)
		if err != nil {
			return
		}

		spanSizeBytes, err = meter.Int64Histogram(
			"traceguard.rule_engine_span_size_bytes",
			metric.WithDescription("Estimated size of processed spans in bytes"),
			metric.WithUnit("By"),
		)
		if err != nil {
			return
		}

		ruleLoadDuration, err = meter.Float64Histogram(
			"traceguard.rule_load_duration",
			metric.WithDescription("Time taken to parse and load a rule"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return
		}

		ruleLoadTotal, err = meter.Int64Counter(
			"traceguard.rule_load_total",
			metric.WithDescription("Total number of rule load attempts"),
		)
		if err != nil {
			return
		}

		rulesActive, err = meter.Int64UpDownCounter(
			"traceguard.rules_active",
			metric.WithDescription("Number of currently active rules"),
		)
		if err != nil {
			return
		}

		lazyFieldsLoaded, err = meter.Int64Histogram(
			"traceguard.lazy_evaluation_fields_loaded",
			metric.WithDescription("Number of span fields actually loaded during lazy evaluation"),
		)
		if err != nil {
			return
		}

		lazyCacheHits, err = meter.Int64Counter(
			"traceguard.lazy_evaluation_cache_hits_total",
			metric.WithDescription("Number of lazy evaluation cache hits"),
		)
		if err != nil {
			return
		}

		violationsRecordedTotal, err = meter.Int64Counter(
			"traceguard.violations_recorded_total",
			metric.WithDescription("Total number of violations recorded"),
		)
		if err != nil {
			return
		}

		traceAccumulatorSpans, err = meter.Int64Counter(
			"traceguard.trace_accumulator_spans_total",
			metric.WithDescription("Total number of spans ingested by the trace accumulator"),
		)
	})
	return err
}

// RecordRuleEvaluation records a rule evaluation with duration and result.
func RecordRuleEvaluation(ctx context.Context, ruleID string, result string, durationSeconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("rule_id", ruleID),
		attribute.String("result", result), // match|no_match|error
	)

	ruleEvaluationDuration.Record(ctx, durationSeconds, attrs)
	ruleEvaluationTotal.Add(ctx, 1, attrs)
}

// RecordSpanProcessed increments the span processing counter.
func RecordSpanProcessed(ctx context.Context) {
	spansProcessedTotal.Add(ctx, 1)
	traceAccumulatorSpans.Add(ctx, 1)
}

// RecordSpanAttributes records the number of attributes in a span.
func RecordSpanAttributes(ctx context.Context, count int64) {
	spanAttributesCount.Record(ctx, count)
}

// RecordSpanSize records the estimated size of a span in bytes.
func RecordSpanSize(ctx context.Context, sizeBytes int64) {
	spanSizeBytes.Record(ctx, sizeBytes)
}

// RecordRuleLoad records a rule load operation.
func RecordRuleLoad(ctx context.Context, status string, durationSeconds float64) {
	ruleLoadDuration.Record(ctx, durationSeconds)
	ruleLoadTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status), // success|error
	))
}

// UpdateActiveRules updates the active rules gauge.
func UpdateActiveRules(ctx context.Context, delta int64) {
	rulesActive.Add(ctx, delta)
}

// RecordLazyFieldsLoaded records the number of fields loaded during lazy
// evaluation.
func RecordLazyFieldsLoaded(ctx context.Context, ruleID string, count int64) {
	lazyFieldsLoaded.Record(ctx, count, metric.WithAttributes(
		attribute.String("rule_id", ruleID),
	))
}

// RecordLazyCacheHit increments the lazy evaluation cache hit counter.
func RecordLazyCacheHit(ctx context.Context, fieldType string) {
	lazyCacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("field_type", fieldType), // scalar|attribute
	))
}

// RecordViolation records a violation being recorded by the store.
func RecordViolation(ctx context.Context, ruleID, status string) {
	violationsRecordedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rule_id", ruleID),
		attribute.String("status", status), // success|error
	))
}
