package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/WailSalutem-Health-Care/carelog"

// Metrics holds all custom metrics for the care log. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PatientOperationsTotal    metric.Int64Counter
	CareRecordOperationsTotal metric.Int64Counter
	StoreTransactionsTotal    metric.Int64Counter
	StoreTransactionMs        metric.Float64Histogram
}

// InitMetrics creates the instruments on mp, or on the global provider
// when mp is nil.
func InitMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	patientOps, err := meter.Int64Counter(
		"patient_operations_total",
		metric.WithDescription("Total number of patient operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	recordOps, err := meter.Int64Counter(
		"care_record_operations_total",
		metric.WithDescription("Total number of care record operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	storeTx, err := meter.Int64Counter(
		"store_transactions_total",
		metric.WithDescription("Total number of storage transaction scopes"),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		return nil, err
	}

	storeTxMs, err := meter.Float64Histogram(
		"store_transaction_duration_milliseconds",
		metric.WithDescription("Storage transaction duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		PatientOperationsTotal:    patientOps,
		CareRecordOperationsTotal: recordOps,
		StoreTransactionsTotal:    storeTx,
		StoreTransactionMs:        storeTxMs,
	}, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordPatientOperation records a patient operation metric
func (m *Metrics) RecordPatientOperation(ctx context.Context, operation string, err error) {
	if m == nil {
		return
	}
	m.PatientOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome(err)),
	))
}

// RecordCareRecordOperation records a care record operation metric
func (m *Metrics) RecordCareRecordOperation(ctx context.Context, operation string, err error) {
	if m == nil {
		return
	}
	m.CareRecordOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome(err)),
	))
}

// RecordStoreTransaction records one committed or aborted transaction
// scope. Its signature matches storage.Options.OnTransaction once the
// mode is rendered as a string.
func (m *Metrics) RecordStoreTransaction(ctx context.Context, mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome(err)),
	)
	m.StoreTransactionsTotal.Add(ctx, 1, attrs)
	m.StoreTransactionMs.Record(ctx, float64(d.Microseconds())/1000, attrs)
}
