package models

import "time"

// Span represents an OpenTelemetry span ingested for rule evaluation.
type Span struct {
	SpanID        string            `json:"spanId"`
	TraceID       string            `json:"traceId"`
	ParentSpanID  string            `json:"parentSpanId,omitempty"`
	OperationName string            `json:"operationName"`
	ServiceName   string            `json:"serviceName"`
	Kind          string            `json:"kind,omitempty"` // CLIENT, SERVER, INTERNAL, PRODUCER, CONSUMER
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime,omitempty"`
	Duration      int64             `json:"duration"` // nanoseconds
	Attributes    map[string]string `json:"attributes"`
	Status        string            `json:"status"` // OK, ERROR, UNSET

	// Evicted marks a span rejected by the per-trace span cap, or held by a
	// trace that was LRU-evicted from the accumulator. Such spans are
	// excluded from rule evaluation. A span that arrives after its trace
	// has been evaluated is not marked; it opens a new trace context under
	// the same trace ID.
	Evicted bool `json:"evicted,omitempty"`
}
