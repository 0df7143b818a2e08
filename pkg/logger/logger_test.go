package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestNewWithWriter_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("storefront", "info", &buf).Info("boot")

	out := decodeLine(t, &buf)
	assert.Equal(t, "storefront", out["service"])
	assert.Equal(t, "boot", out["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("storefront", "warn", &buf).Info("dropped")
	assert.Zero(t, buf.Len())
}

func TestWithContext_CorrelationAndActor(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("storefront", "info", &buf)

	ctx := WithCorrelationID(context.Background(), "req-123")
	ctx = WithActor(ctx, "anon:abc")
	WithContext(ctx, l).Info("hello")

	out := decodeLine(t, &buf)
	assert.Equal(t, "req-123", out["correlation_id"])
	assert.Equal(t, "anon:abc", out["actor"])
	assert.NotContains(t, out, "trace_id")
}

func TestWithContext_WithValidSpan(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("storefront", "info", &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	WithContext(ctx, l).Info("with span")

	out := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := NewWithWriter("storefront", "info", &bytes.Buffer{})
	assert.Same(t, l, FromContext(NewContext(context.Background(), l)))
}
