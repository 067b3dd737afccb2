package services

import "errors"

// ErrTraceTooLarge is returned by TraceBufferFSM.AddSpan when a trace
// already holds its configured maximum number of spans. The rejected
// span is marked Evicted and counted, not silently dropped.
var ErrTraceTooLarge = errors.New("services: trace exceeds max spans per trace")
