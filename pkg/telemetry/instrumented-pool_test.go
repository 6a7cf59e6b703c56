package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetricNames(t *testing.T, reader *metric.ManualReader) map[string]bool {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestInstrumentedPoolRecordsStatementDuration(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))

	ip, err := NewInstrumentedPool(provider, nil)
	require.NoError(t, err)

	ip.observe(context.Background(), "exec", time.Now().Add(-5*time.Millisecond), nil)

	names := collectMetricNames(t, reader)
	require.True(t, names["db.query_duration"])
}

func TestInstrumentedPoolCountsFailedStatements(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	require.NoError(t, InitBusinessMetrics(provider))

	ip, err := NewInstrumentedPool(provider, nil)
	require.NoError(t, err)

	ip.observe(context.Background(), "query", time.Now(), errors.New("connection refused"))

	names := collectMetricNames(t, reader)
	require.True(t, names["db.query_duration"])
	require.True(t, names["database.errors.total"])
}
