package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "", "pay2win", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestProviderExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := newProvider(exp, resource.Empty())

	_, span := tp.Tracer("test").Start(context.Background(), "ledger.CreatePurchase")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "ledger.CreatePurchase", spans[0].Name)
	require.NoError(t, tp.Shutdown(context.Background()))
}
