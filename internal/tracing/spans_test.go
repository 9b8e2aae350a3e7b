package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRecordOutcome(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	t.Run("success sets OK status", func(t *testing.T) {
		_, span := tracer.Start(context.Background(), SpanRun)
		RecordOutcome(span, nil)
		span.End()

		spans := recorder.Ended()
		got := spans[len(spans)-1]
		require.Equal(t, codes.Ok, got.Status().Code)
	})

	t.Run("error records and sets ERROR status", func(t *testing.T) {
		_, span := tracer.Start(context.Background(), SpanRun)
		RecordOutcome(span, errors.New("agent process exited: exit status 2"))
		span.End()

		spans := recorder.Ended()
		got := spans[len(spans)-1]
		require.Equal(t, codes.Error, got.Status().Code)
		require.Contains(t, got.Status().Description, "exit status 2")
		require.NotEmpty(t, got.Events(), "error should be recorded as a span event")
	})
}
