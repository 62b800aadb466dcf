package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/WailSalutem-Health-Care/carelog/internal/config"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := InitMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPatientOperation(ctx, "create", nil)
	m.RecordPatientOperation(ctx, "create", errors.New("duplicate"))
	m.RecordCareRecordOperation(ctx, "restore", nil)
	m.RecordStoreTransaction(ctx, "readwrite", 3*time.Millisecond, nil)

	data := collect(t, reader)

	patients, ok := data["patient_operations_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, patients.DataPoints, 2)

	records, ok := data["care_record_operations_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, records.DataPoints, 1)
	assert.Equal(t, int64(1), records.DataPoints[0].Value)

	hist, ok := data["store_transaction_duration_milliseconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 3.0, hist.DataPoints[0].Sum, 0.001)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordPatientOperation(context.Background(), "create", nil)
	m.RecordStoreTransaction(context.Background(), "readonly", time.Second, nil)
}

func TestConfigFrom_Defaults(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAMESPACE", "")
	t.Setenv("OTEL_TRACES_SAMPLER", "")

	cfg := ConfigFrom(config.TelemetryConfig{})
	assert.Equal(t, "carelog", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "wailsalutem", cfg.ServiceNamespace)
	assert.Equal(t, 30*time.Second, cfg.MetricsInterval)
	assert.Equal(t, "always_on", cfg.TracesSampler)
}

func TestProvider_NilShutdown(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}
