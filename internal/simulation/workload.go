package simulation

import (
	"fmt"
	"time"

	"github.com/betracehq/traceguard/pkg/models"
)

var workloadOperations = []string{
	"checkout", "payment", "fraud_check", "shipment", "inventory_check",
}

// WorkloadGenerator produces deterministic synthetic spans and rules for
// simulation runs, all derived from a single DeterministicRand so a given
// seed always reproduces the same workload.
type WorkloadGenerator struct {
	rand *DeterministicRand
}

// NewWorkloadGenerator builds a generator driven by rand.
func NewWorkloadGenerator(rand *DeterministicRand) *WorkloadGenerator {
	return &WorkloadGenerator{rand: rand}
}

// GenerateTrace builds spanCount spans sharing one trace ID, mimicking a
// single request fanning out across the fixed set of workload operations.
func (w *WorkloadGenerator) GenerateTrace(spanCount int) []*models.Span {
	if spanCount <= 0 {
		spanCount = 1
	}
	traceID := w.rand.UUID()
	now := time.Now()

	spans := make([]*models.Span, 0, spanCount)
	for i := 0; i < spanCount; i++ {
		op := w.rand.Choice(workloadOperations)
		durationNs := w.rand.Duration(int64(time.Millisecond), int64(200*time.Millisecond))
		spans = append(spans, &models.Span{
			SpanID:        w.rand.UUID(),
			TraceID:       traceID,
			OperationName: op,
			ServiceName:   "sim-service",
			StartTime:     now,
			EndTime:       now.Add(time.Duration(durationNs)),
			Duration:      durationNs,
			Status:        w.pickStatus(),
			Attributes: map[string]string{
				"amount": fmt.Sprintf("%d", w.rand.Intn(5000)),
			},
		})
	}
	return spans
}

func (w *WorkloadGenerator) pickStatus() string {
	if w.rand.Chance(0.1) {
		return "ERROR"
	}
	return "OK"
}

// GenerateRule builds a valid DSL rule expression referencing one of the
// workload operations, so engine-loaded rules actually have a chance of
// matching generated traces.
func (w *WorkloadGenerator) GenerateRule(id string) models.Rule {
	op := w.rand.Choice(workloadOperations)
	threshold := w.rand.Intn(5000)
	expr := fmt.Sprintf("when { %s.where(amount > %d) } always { fraud_check }", op, threshold)

	return models.Rule{
		ID:          id,
		Name:        fmt.Sprintf("sim-rule-%s", id[:8]),
		Description: "simulation-generated rule",
		Severity:    "MEDIUM",
		Expression:  expr,
		Enabled:     true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// WorkloadProfile parameterizes a simulation Run: how often traces arrive,
// how large they are, and how often new rules are introduced.
type WorkloadProfile struct {
	Name          string
	TraceInterval time.Duration
	SpansPerTrace int
	RuleChurn     time.Duration
}

// BurstWorkload is a high-throughput profile: traces every virtual
// millisecond, sized to clear 20000 spans and 50 rules well within a
// 30-second virtual run.
func BurstWorkload() WorkloadProfile {
	return WorkloadProfile{
		Name:          "burst",
		TraceInterval: time.Millisecond,
		SpansPerTrace: 4,
		RuleChurn:     50 * time.Millisecond,
	}
}
