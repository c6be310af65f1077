package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSetup_None(t *testing.T) {
	for _, exporter := range []string{"", ExporterNone} {
		shutdown, err := Setup(context.Background(), Config{Exporter: exporter})
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))

		_, ok := otel.GetTracerProvider().(noop.TracerProvider)
		assert.True(t, ok, "expected noop provider for %q", exporter)
	}
}

func TestSetup_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{Exporter: ExporterStdout, Writer: &buf})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "answer", String("query", "capital of France"))
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "answer"`)
	assert.Contains(t, buf.String(), "capital of France")

	otel.SetTracerProvider(noop.NewTracerProvider())
}

func TestSetup_Unsupported(t *testing.T) {
	_, err := Setup(context.Background(), Config{Exporter: "jaeger"})
	assert.Error(t, err)
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	_, span := StartSpan(context.Background(), "search", Int("results", 0))
	RecordError(span, errors.New("blocked"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "search", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "blocked", spans[0].Status().Description)
}
