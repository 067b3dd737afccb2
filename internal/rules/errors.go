package rules

import "errors"

// ErrBackpressureDropped is returned by Submit when the ingestion queue
// stayed full for longer than the engine's configured ingest_block_ms and
// the span was dropped rather than queued.
var ErrBackpressureDropped = errors.New("rules: span dropped under backpressure")

// ErrDeadlineExceeded is returned (and counted toward a rule's error
// budget) when a single rule evaluation runs past its configured
// eval_timeout.
var ErrDeadlineExceeded = errors.New("rules: evaluation deadline exceeded")
