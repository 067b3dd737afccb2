package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the rule engine, violation pipeline, and trace
// accumulator.

var (
	// Rule Engine Performance Metrics
	RuleEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "traceguard_rule_evaluation_duration_seconds",
			Help:    "Time taken to evaluate a single rule against a trace",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1μs to 1s
		},
		[]string{"rule_id", "result"}, // result: match|no_match|error
	)

	RuleEvaluationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traceguard_rule_evaluation_total",
			Help: "Total number of rule evaluations",
		},
		[]string{"rule_id", "result"},
	)

	RuleEngineSpansProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "traceguard_rule_engine_spans_processed_total",
			Help: "Total number of spans processed by the rule engine",
		},
	)

	RuleEngineSpanAttributes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "traceguard_rule_engine_span_attributes",
			Help:    "Number of attributes in processed spans",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to 4096
		},
	)

	RuleEngineSpanSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "traceguard_rule_engine_span_size_bytes",
			Help:    "Estimated size of processed spans in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 2, 20), // 100B to 100MB
		},
	)

	EngineSpansDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "traceguard_rule_engine_spans_dropped_total",
			Help: "Total number of spans dropped by Submit because the ingestion queue stayed full past ingest_block_ms",
		},
	)

	RuleLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "traceguard_rule_load_duration_seconds",
			Help:    "Time taken to parse and load a rule",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
		},
	)

	RuleLoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traceguard_rule_load_total",
			Help: "Total number of rule load attempts",
		},
		[]string{"status"}, // status: success|error
	)

	RulesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "traceguard_rules_active",
			Help: "Number of currently active (non-quarantined) rules",
		},
	)

	RulesQuarantined = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "traceguard_rules_quarantined",
			Help: "Number of rules currently quarantined after repeated evaluation errors",
		},
	)

	RuleEvaluationTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traceguard_rule_evaluation_timeouts_total",
			Help: "Total number of rule evaluations that exceeded the per-span evaluation deadline",
		},
		[]string{"rule_id"},
	)

	// Lazy Evaluation Metrics
	LazyEvaluationFieldsLoaded = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "traceguard_lazy_evaluation_fields_loaded",
			Help:    "Number of span fields actually loaded during lazy evaluation",
			Buckets: prometheus.LinearBuckets(0, 5, 20), // 0 to 100 fields
		},
		[]string{"rule_id"},
	)

	LazyEvaluationCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traceguard_lazy_evaluation_cache_hits_total",
			Help: "Number of lazy evaluation cache hits",
		},
		[]string{"field_type"}, // field_type: scalar|attribute
	)

	// Violation Pipeline Metrics
	ViolationsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traceguard_violations_recorded_total",
			Help: "Total number of violations recorded",
		},
		[]string{"status"}, // status: success|error
	)

	ViolationExporterQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "traceguard_violation_exporter_queue_depth",
			Help: "Current number of violations buffered in the exporter",
		},
	)

	ViolationExporterDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "traceguard_violation_exporter_dropped_total",
			Help: "Total number of violations dropped because the exporter buffer was full",
		},
	)

	// Trace Accumulator Metrics
	TraceAccumulatorActiveTraces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "traceguard_trace_accumulator_active_traces",
			Help: "Number of traces currently held in the accumulator",
		},
	)

	TraceAccumulatorEvictedSpans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "traceguard_trace_accumulator_evicted_spans_total",
			Help: "Total number of spans marked evicted on arrival because their trace already holds trace_max_spans spans",
		},
	)

	TraceAccumulatorTracesEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "traceguard_trace_accumulator_traces_evicted_total",
			Help: "Total number of in-flight traces dropped by LRU eviction under memory pressure",
		},
	)

	TraceAccumulatorOversizedTraces = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "traceguard_trace_accumulator_oversized_traces_total",
			Help: "Total number of spans rejected because their trace already holds trace_max_spans spans",
		},
	)

	// Runtime Performance Metrics
	MemoryUsageBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "traceguard_memory_usage_bytes",
			Help: "Memory usage of traceguard components",
		},
		[]string{"component"}, // component: rule_engine|trace_accumulator|violation_exporter
	)

	GoroutinesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "traceguard_goroutines_active",
			Help: "Number of active goroutines",
		},
	)

	GCPauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "traceguard_gc_pause_duration_seconds",
			Help:    "Duration of garbage collection pauses",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 20), // 10μs to 10s
		},
	)
)
