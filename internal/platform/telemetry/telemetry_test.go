package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tinywideclouds/go-orderstatus-client/orderclient/config"
)

// restoreGlobalProvider puts the original tracer provider back after the test.
func restoreGlobalProvider(t *testing.T) {
	t.Helper()
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - No endpoint leaves the global provider alone", func(t *testing.T) {
		restoreGlobalProvider(t)
		before := otel.GetTracerProvider()

		shutdown, err := Init(ctx, config.TelemetryConfig{ServiceName: "orderclient"})

		require.NoError(t, err)
		assert.Same(t, before, otel.GetTracerProvider())
		assert.NoError(t, shutdown(ctx))
	})

	t.Run("Success - Endpoint installs an SDK provider", func(t *testing.T) {
		restoreGlobalProvider(t)

		shutdown, err := Init(ctx, config.TelemetryConfig{
			ServiceName:  "orderclient",
			OTLPEndpoint: "localhost:4317",
			Insecure:     true,
		})

		require.NoError(t, err)
		assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
		shutdownCtx, cancel := context.WithCancel(ctx)
		cancel()
		_ = shutdown(shutdownCtx)
	})
}

func TestInstall_ExportsSpans(t *testing.T) {
	// Arrange
	restoreGlobalProvider(t)
	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := install(exporter, "orderclient-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	// Act
	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "push.dispatch")
	span.End()
	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))

	// Assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "push.dispatch", spans[0].Name)
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.name", "orderclient-test"))
}
