package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("flowchain")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestSpanManager_ChainAndNodeSpans(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, chainSpan := sm.StartChainSpan(context.Background(), "orders", "chain-1")
	nodeCtx, nodeSpan := sm.StartNodeSpan(ctx, "fetch", "set")
	sm.AddSpanEvent(nodeCtx, "suspended", attribute.String("param", "email"))
	sm.EndSpanWithError(nodeSpan, errors.New("boom"))
	sm.EndSpanWithError(chainSpan, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	node, chain := spans[0], spans[1]
	assert.Equal(t, "flowchain.node.fetch", node.Name)
	assert.Equal(t, "set", attrMap(node.Attributes)["node.kind"])
	assert.Equal(t, codes.Error, node.Status.Code)
	require.Len(t, node.Events, 2)
	assert.Equal(t, "suspended", node.Events[0].Name)
	assert.Equal(t, chain.SpanContext.SpanID(), node.Parent.SpanID())

	assert.Equal(t, "flowchain.chain", chain.Name)
	assert.Equal(t, "chain-1", attrMap(chain.Attributes)["chain.id"])
	assert.Equal(t, codes.Ok, chain.Status.Code)
}

func TestEndSpanWithError_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() { EndSpanWithError(nil, errors.New("x")) })
}

func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()

	var sm SpanManager = NoopSpanManager{}
	gotCtx, span := sm.StartChainSpan(ctx, "n", "id")
	assert.Equal(t, ctx, gotCtx)
	assert.False(t, span.IsRecording())
	_, span = sm.StartNodeSpan(ctx, "a", "set")
	sm.EndSpanWithError(span, errors.New("x"))
	sm.AddSpanEvent(ctx, "evt")

	var m MetricsRecorder = NoopMetrics{}
	assert.NotPanics(t, func() {
		m.RecordNodeExecution(ctx, "a", "set", 0, nil)
		m.RecordChainRun(ctx, "READY", 0)
		m.RecordSuspend(ctx, "a")
		m.RecordSnapshot(ctx, "c", 1)
	})
}
