package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// RunSpan is the JSONL record written for each finished span. The shape
// is flat on purpose so trace files can be inspected with jq or grep.
type RunSpan struct {
	Trace      string         `json:"trace"`
	Span       string         `json:"span"`
	Parent     string         `json:"parent,omitempty"`
	Name       string         `json:"name"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	DurationMs float64        `json:"duration_ms"`
	Outcome    string         `json:"outcome"` // ok, error, unset
	Reason     string         `json:"reason,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
	Events     []RunSpanEvent `json:"events,omitempty"`
}

// RunSpanEvent is a point-in-time marker inside a run span, such as the
// child process starting or the init event arriving.
type RunSpanEvent struct {
	Name  string         `json:"name"`
	At    time.Time      `json:"at"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// FileExporter appends finished spans to a JSONL file. It implements
// sdktrace.SpanExporter and backs the "file" exporter setting.
type FileExporter struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewFileExporter opens path for appending, creating parent directories
// as needed.
func NewFileExporter(path string) (*FileExporter, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- path is cleaned above
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	return &FileExporter{f: f, enc: json.NewEncoder(f)}, nil
}

// ExportSpans writes one RunSpan line per span. Exports after Shutdown
// are dropped silently, matching the SpanExporter contract.
func (e *FileExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	for _, s := range spans {
		if err := e.enc.Encode(runSpan(s)); err != nil {
			return fmt.Errorf("encoding span: %w", err)
		}
	}
	return nil
}

// Shutdown closes the trace file. Idempotent.
func (e *FileExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f, e.enc = nil, nil
	return err
}

func runSpan(s sdktrace.ReadOnlySpan) RunSpan {
	rec := RunSpan{
		Trace:      s.SpanContext().TraceID().String(),
		Span:       s.SpanContext().SpanID().String(),
		Name:       s.Name(),
		Start:      s.StartTime(),
		End:        s.EndTime(),
		DurationMs: float64(s.EndTime().Sub(s.StartTime())) / float64(time.Millisecond),
		Outcome:    outcome(s.Status().Code),
		Reason:     s.Status().Description,
		Attrs:      attrMap(s.Attributes()),
	}
	if s.Parent().IsValid() {
		rec.Parent = s.Parent().SpanID().String()
	}
	for _, ev := range s.Events() {
		rec.Events = append(rec.Events, RunSpanEvent{
			Name:  ev.Name,
			At:    ev.Time,
			Attrs: attrMap(ev.Attributes),
		})
	}
	return rec
}

func outcome(c codes.Code) string {
	switch c {
	case codes.Ok:
		return "ok"
	case codes.Error:
		return "error"
	default:
		return "unset"
	}
}

func attrMap(kvs []attribute.KeyValue) map[string]any {
	if len(kvs) == 0 {
		return nil
	}
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}
