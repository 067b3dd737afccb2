package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/betracehq/traceguard/internal/rules"
	"github.com/betracehq/traceguard/internal/services"
	"github.com/betracehq/traceguard/internal/storage"
	"github.com/betracehq/traceguard/pkg/fsm"
	"github.com/betracehq/traceguard/pkg/models"
)

// SimStats summarizes a simulation run for reporting and invariant checks.
type SimStats struct {
	Seed           int64
	SpansGenerated int
	RulesGenerated int
	Crashes        int
}

// Simulator drives the rule engine, trace accumulator and disk-backed rule
// store through a deterministic, virtual-time workload, including simulated
// process crashes, the way a FoundationDB-style simulation harness exercises
// a real system's persistence and recovery paths without real disks or
// real clocks.
type Simulator struct {
	seed  int64
	rand  *DeterministicRand
	clock *VirtualClock

	dataDir string
	fs      *storage.MockFileSystem

	ruleStore   *storage.DiskRuleStore
	engine      *rules.RuleEngine
	buffer      *services.TraceBufferFSM
	ruleService *fsm.SafeRuleService

	workload *WorkloadGenerator

	spansGenerated int
	rulesGenerated int
	crashes        int
}

// NewSimulator builds a simulator seeded for full reproducibility: the same
// seed always produces the same sequence of rules, spans and crashes.
func NewSimulator(seed int64) *Simulator {
	sim := &Simulator{
		seed:    seed,
		rand:    NewDeterministicRand(seed),
		clock:   NewVirtualClock(time.Unix(0, 0)),
		dataDir: "/sim-data",
		fs:      storage.NewMockFileSystem(),
	}
	sim.workload = NewWorkloadGenerator(sim.rand)
	sim.reopen()
	return sim
}

// reopen (re)builds the rule store, engine and trace buffer on top of the
// simulator's persistent mock filesystem, the way a restarted process would
// reopen its on-disk rule store and rebuild in-memory state from it.
func (sim *Simulator) reopen() {
	if sim.buffer != nil {
		sim.buffer.Stop()
	}
	if sim.engine != nil {
		sim.engine.Stop()
	}

	store, err := storage.NewDiskRuleStoreWithFS(sim.dataDir, sim.fs)
	if err != nil {
		// The mock filesystem never fails MkdirAll; a real error here would
		// mean the simulated disk is corrupt beyond recovery.
		panic(fmt.Sprintf("simulation: reopen rule store: %v", err))
	}
	sim.ruleStore = store

	engine := rules.NewRuleEngine()
	persisted, err := store.List()
	if err != nil {
		panic(fmt.Sprintf("simulation: list persisted rules: %v", err))
	}

	adapter := rules.NewFSMAdapter(engine)
	ruleService := fsm.NewSafeRuleService(adapter, store)
	for _, rule := range persisted {
		if err := engine.LoadRule(rule); err != nil {
			continue
		}
		_ = ruleService.MarkRecovered(rule.ID)
	}
	engine.Start(4, 1024, 10*time.Millisecond, func(span *models.Span) error {
		return sim.buffer.AddSpan(span)
	})

	sim.engine = engine
	sim.ruleService = ruleService
	sim.buffer = services.NewTraceBufferFSM(5*time.Second, 0, 0,
		func(ctx context.Context, traceID string, spans []*models.Span) {
			_, _ = engine.EvaluateTrace(ctx, traceID, spans)
		})
}

// CrashAndRestart simulates a process crash and restart: the in-memory
// engine and trace buffer are discarded and rebuilt from whatever the rule
// store's atomic disk writes left behind on the (still persistent) mock
// filesystem.
func (sim *Simulator) CrashAndRestart() error {
	sim.crashes++
	sim.reopen()
	return nil
}

// GetRules returns every rule currently loaded in the engine.
func (sim *Simulator) GetRules() []models.Rule {
	compiled := sim.engine.ListRules()
	out := make([]models.Rule, 0, len(compiled))
	for _, c := range compiled {
		out = append(out, c.Rule)
	}
	return out
}

// GenerateRule creates and persists one random, valid rule through the same
// SafeRuleService path a real client uses, returning the zero Rule on
// failure.
func (sim *Simulator) GenerateRule() models.Rule {
	sim.rulesGenerated++
	rule := sim.workload.GenerateRule(sim.rand.UUID())
	if err := sim.ruleService.CreateRule(context.Background(), rule); err != nil {
		return models.Rule{}
	}
	return rule
}

// CreateRule generates a rule, ignoring the label's literal content since an
// arbitrary test label ("test-invariant-rule") is not itself valid DSL.
func (sim *Simulator) CreateRule(label string) models.Rule {
	return sim.GenerateRule()
}

// SendSpan feeds a span into the trace accumulator, counting it toward the
// simulation's span total regardless of whether the buffer accepts it.
func (sim *Simulator) SendSpan(span *models.Span) {
	sim.spansGenerated++
	_ = sim.buffer.AddSpan(span)
}

// Now returns the simulator's current virtual time.
func (sim *Simulator) Now() time.Time {
	return sim.clock.Now()
}

// Seed returns the seed the simulator was constructed with.
func (sim *Simulator) Seed() int64 {
	return sim.seed
}

// Advance moves virtual time forward by d.
func (sim *Simulator) Advance(d time.Duration) {
	sim.clock.Advance(d)
}

// Run drives the simulator for the given virtual duration under profile,
// generating traces at profile.TraceInterval and churning rules at
// profile.RuleChurn.
func (sim *Simulator) Run(duration time.Duration, profile WorkloadProfile) error {
	deadline := sim.clock.Now().Add(duration)
	var sinceChurn time.Duration

	for sim.clock.Now().Before(deadline) {
		for _, span := range sim.workload.GenerateTrace(profile.SpansPerTrace) {
			sim.SendSpan(span)
		}

		sinceChurn += profile.TraceInterval
		if profile.RuleChurn > 0 && sinceChurn >= profile.RuleChurn {
			sim.GenerateRule()
			sinceChurn = 0
		}

		sim.Advance(profile.TraceInterval)
	}
	return nil
}

// Stats reports cumulative counters for the simulation run so far.
func (sim *Simulator) Stats() SimStats {
	return SimStats{
		Seed:           sim.seed,
		SpansGenerated: sim.spansGenerated,
		RulesGenerated: sim.rulesGenerated,
		Crashes:        sim.crashes,
	}
}

// Report prints a human-readable summary of the simulation run.
func (sim *Simulator) Report() {
	stats := sim.Stats()
	fmt.Printf("[SIMULATION REPORT] seed=%d spans=%d rules=%d crashes=%d rules_live=%d\n",
		stats.Seed, stats.SpansGenerated, stats.RulesGenerated, stats.Crashes, len(sim.GetRules()))
}
