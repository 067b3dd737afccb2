package observability

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/betracehq/traceguard/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ViolationExporter provides non-blocking export of recorded violations as
// OTLP-shaped spans. Producers enqueue via Emit; a single background
// worker drains the buffer so that the hot evaluation path never blocks
// on the exporter.
type ViolationExporter struct {
	buffer chan models.Violation
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewViolationExporter creates a new exporter with the given buffer
// capacity.
func NewViolationExporter(bufferSize int) *ViolationExporter {
	ctx, cancel := context.WithCancel(context.Background())
	return &ViolationExporter{
		buffer: make(chan models.Violation, bufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the background worker that exports violations.
func (e *ViolationExporter) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case v := <-e.buffer:
				e.exportViolation(v)
				ViolationExporterQueueDepth.Set(float64(len(e.buffer)))
			case <-e.ctx.Done():
				e.drainBuffer()
				return
			}
		}
	}()
	log.Printf("violation exporter started (buffer capacity: %d)", cap(e.buffer))
}

// Emit queues a violation for async export. Non-blocking: if the buffer
// is full the violation is dropped and the drop is counted, trading
// durability for keeping the evaluation path unblocked.
func (e *ViolationExporter) Emit(v models.Violation) {
	select {
	case e.buffer <- v:
		ViolationExporterQueueDepth.Set(float64(len(e.buffer)))
	default:
		ViolationExporterDropped.Inc()
		log.Printf("violation exporter buffer full, dropping violation %s (rule %s)", v.ID, v.RuleID)
	}
}

// Stop gracefully shuts down the exporter, draining the buffer.
func (e *ViolationExporter) Stop() {
	e.cancel()
	e.wg.Wait()
	log.Println("violation exporter stopped")
}

// drainBuffer attempts to export all buffered violations within timeout.
func (e *ViolationExporter) drainBuffer() {
	timeout := time.After(5 * time.Second)
	drained := 0

	for {
		select {
		case v := <-e.buffer:
			e.exportViolation(v)
			drained++
		case <-timeout:
			remaining := len(e.buffer)
			if remaining > 0 {
				log.Printf("timeout draining violation exporter, %d violations dropped", remaining)
			}
			log.Printf("drained %d violations before shutdown", drained)
			return
		default:
			log.Printf("drained %d violations before shutdown", drained)
			return
		}
	}
}

// exportViolation exports a single violation as an OTLP span using the
// betrace.violation.* attribute schema.
func (e *ViolationExporter) exportViolation(v models.Violation) {
	_, span := Tracer.Start(context.Background(), "violation.export")
	defer span.End()

	span.SetAttributes(
		attribute.String("betrace.violation.id", v.ID),
		attribute.String("betrace.violation.rule_id", v.RuleID),
		attribute.String("betrace.violation.rule_name", v.RuleName),
		attribute.String("betrace.violation.severity", v.Severity),
		attribute.String("betrace.violation.message", v.Message),
		attribute.String("betrace.violation.signature", v.Signature),
		attribute.StringSlice("betrace.violation.trace_ids", v.TraceIDs),
	)

	span.AddEvent("violation_recorded", trace.WithAttributes(
		attribute.String("rule_id", v.RuleID),
		attribute.String("severity", v.Severity),
	))
}

// BufferSize returns the current number of buffered violations.
func (e *ViolationExporter) BufferSize() int {
	return len(e.buffer)
}

// BufferCapacity returns the maximum buffer capacity.
func (e *ViolationExporter) BufferCapacity() int {
	return cap(e.buffer)
}
