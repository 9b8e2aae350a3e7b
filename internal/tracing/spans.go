package tracing

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for supervised runs.
const (
	// Run attributes
	AttrRunID     = "run.id"
	AttrSessionID = "session.id"
	AttrModel     = "run.model"
	AttrResumed   = "run.resumed"
	AttrWorkDir   = "run.work_dir"

	// Process attributes
	AttrProcessPID      = "process.pid"
	AttrProcessExitCode = "process.exit_code"

	// Stream attributes
	AttrEventCount = "stream.event_count"

	// Error attributes
	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanRun = "run"
)

// Event names for span events.
const (
	EventProcessStarted = "process.started"
	EventInitReceived   = "stream.init_received"
	EventResultReceived = "stream.result_received"
	EventProcessExited  = "process.exited"
	EventKilled         = "process.killed"
)

// RecordOutcome sets the span status from a run's terminal error.
func RecordOutcome(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
