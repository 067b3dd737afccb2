// Command traceguardd is the composition root for the trace assertion
// engine. It wires the rule engine, the disk-backed rule store, the
// FSM-gated trace accumulator and the violation store/exporter together,
// then blocks until signaled to shut down. It intentionally starts no
// network listener: span ingestion and the rule-management API are the
// responsibility of a transport layer that imports this wiring, mirroring
// the teacher's env-driven config and signal-driven shutdown without its
// net/http mux.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betracehq/traceguard/internal/config"
	"github.com/betracehq/traceguard/internal/observability"
	"github.com/betracehq/traceguard/internal/rules"
	"github.com/betracehq/traceguard/internal/services"
	"github.com/betracehq/traceguard/internal/storage"
	"github.com/betracehq/traceguard/pkg/fsm"
	"github.com/betracehq/traceguard/pkg/models"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; env vars and defaults otherwise)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitOpenTelemetryOrNoop(ctx, "traceguardd", version)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("error shutting down tracing: %v", err)
		}
	}()

	ruleStore, err := storage.NewDiskRuleStore(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("failed to open rule store at %s: %v", cfg.Storage.DataDir, err)
	}
	log.Printf("rule store ready (data dir: %s)", cfg.Storage.DataDir)

	engine := rules.NewRuleEngine()
	engine.SetQuarantineThreshold(cfg.Engine.QuarantineErrors)
	engine.SetEvaluationTimeout(time.Duration(cfg.Limits.Trace.EvaluationTimeout) * time.Millisecond)

	// Rule mutations (create/update/delete) flow through SafeRuleService so
	// the engine's in-memory table and the disk store can never diverge;
	// it drives both through the rule lifecycle FSM with compensating
	// rollback on partial failure.
	ruleService := fsm.NewSafeRuleService(rules.NewFSMAdapter(engine), ruleStore)

	persisted, err := ruleStore.List()
	if err != nil {
		log.Fatalf("failed to list persisted rules: %v", err)
	}
	for _, rule := range persisted {
		if err := engine.LoadRule(rule); err != nil {
			log.Printf("skipping persisted rule %s: %v", rule.ID, err)
			continue
		}
		// These rules were already compiled and persisted before this
		// process started; replay the lifecycle transitions without
		// re-running the engine/store side effects so the FSM's view
		// matches reality for any later update/delete.
		if err := ruleService.MarkRecovered(rule.ID); err != nil {
			log.Printf("rule %s: lifecycle state recovery failed: %v", rule.ID, err)
		}
	}
	log.Printf("loaded %d persisted rules (%d rejected)", len(engine.ListRules()), len(persisted)-len(engine.ListRules()))

	violationStore := services.NewViolationStoreMemory(cfg.Storage.SignatureKey)
	if cfg.Storage.SignatureKey == "" {
		log.Println("warning: no signature key configured, violations will be recorded unsigned")
	}

	violationExporter := observability.NewViolationExporter(cfg.Exporter.BufferCapacity)
	violationExporter.Start()

	idleTimeout := time.Duration(cfg.Limits.Trace.IdleTimeout) * time.Second
	traceBuffer := services.NewTraceBufferFSM(idleTimeout, cfg.Limits.Trace.MaxSpansPerTrace, cfg.Limits.Trace.MaxActiveTraces,
		func(evalCtx context.Context, traceID string, spans []*models.Span) {
			evaluateTrace(evalCtx, engine, violationStore, violationExporter, traceID, spans)
		})

	ingestBlock := time.Duration(cfg.Engine.IngestBlockMS) * time.Millisecond
	engine.Start(cfg.Engine.Workers, cfg.Engine.QueueCapacity, ingestBlock, traceBuffer.AddSpan)

	log.Printf("traceguardd %s (%s) ready: %d workers, queue capacity %d, %d rules loaded, trace idle timeout %s",
		version, commit, cfg.Engine.Workers, cfg.Engine.QueueCapacity, len(engine.ListRules()), idleTimeout)

	<-ctx.Done()
	log.Println("shutdown signal received")

	engine.Stop()
	traceBuffer.Stop()
	violationExporter.Stop()

	log.Println("traceguardd stopped")
}

// evaluateTrace runs every loaded rule against a completed trace's spans
// and records a violation for each match.
func evaluateTrace(ctx context.Context, engine *rules.RuleEngine, violationStore *services.ViolationStoreMemory, exporter *observability.ViolationExporter, traceID string, spans []*models.Span) {
	if len(spans) == 0 {
		return
	}

	matches, err := engine.EvaluateTrace(ctx, traceID, spans)
	if err != nil {
		log.Printf("trace %s: evaluation error: %v", traceID, err)
		return
	}

	for _, ruleID := range matches {
		compiled, ok := engine.GetRule(ruleID)
		if !ok {
			continue
		}

		spanRefs := make([]models.SpanRef, 0, len(spans))
		for _, s := range spans {
			spanRefs = append(spanRefs, models.SpanRef{
				TraceID:     s.TraceID,
				SpanID:      s.SpanID,
				ServiceName: s.ServiceName,
			})
		}

		violation := models.Violation{
			RuleID:   compiled.Rule.ID,
			RuleName: compiled.Rule.Name,
			Severity: compiled.Rule.Severity,
			Message:  "rule " + compiled.Rule.Name + " matched trace " + traceID,
		}

		recorded, err := violationStore.Record(ctx, violation, spanRefs)
		if err != nil {
			log.Printf("trace %s: failed to record violation for rule %s: %v", traceID, ruleID, err)
			continue
		}

		exporter.Emit(recorded)
	}
}
