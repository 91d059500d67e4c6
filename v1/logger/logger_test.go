package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

func TestFieldsAndError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))

	l.Warn("long running query", errors.New("slow"),
		map[string]interface{}{"duration_ms": 61000, "backend": "mysql"},
		map[string]interface{}{"backend": "postgresql"},
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "slow", ctx["error"])
	assert.Equal(t, "postgresql", ctx["backend"])
	assert.EqualValues(t, 61000, ctx["duration_ms"])
}

func TestTraceFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &Logger{Zap: zap.New(core), tracingEnabled: true}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.InfoWithContext(ctx, "replayed", nil)
	l.InfoWithContext(context.Background(), "no span", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, sc.TraceID().String(), entries[0].ContextMap()["trace_id"])
	assert.NotContains(t, entries[1].ContextMap(), "trace_id")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel(Debug))
	assert.Equal(t, zapcore.WarnLevel, parseLevel(Warning))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel(Error))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestFXModuleProvidesConnectionLogger(t *testing.T) {
	var (
		concrete *Logger
		narrow   dbconn.Logger
	)
	app := fxtest.New(t,
		FXModule,
		fx.Supply(Config{Level: Error, ServiceName: "etl-manager"}),
		fx.Populate(&concrete, &narrow),
	)
	app.RequireStart()
	assert.Same(t, concrete, narrow)
	app.RequireStop()
}
