package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ledgerMetrics groups the counters the ledger emits.
type ledgerMetrics struct {
	salesRecorded   metric.Int64Counter
	unitsSold       metric.Int64Counter
	reconciliations metric.Int64Counter
	unitsReconciled metric.Int64Counter
}

// newLedgerMetrics registers the ledger counters on the given meter.
func newLedgerMetrics(meter metric.Meter) (*ledgerMetrics, error) {
	salesRecorded, err := meter.Int64Counter("ledger.sales.recorded",
		metric.WithDescription("Number of sales confirmed against the stock ledger"))
	if err != nil {
		return nil, err
	}
	unitsSold, err := meter.Int64Counter("ledger.sales.units_sold",
		metric.WithDescription("Units moved from on hand to sold"))
	if err != nil {
		return nil, err
	}
	reconciliations, err := meter.Int64Counter("ledger.reconciliations",
		metric.WithDescription("Aggregated-sale quantity edits applied"))
	if err != nil {
		return nil, err
	}
	unitsReconciled, err := meter.Int64Counter("ledger.reconciliations.units",
		metric.WithDescription("Net units moved by reconciliation, sold negative"))
	if err != nil {
		return nil, err
	}

	return &ledgerMetrics{
		salesRecorded:   salesRecorded,
		unitsSold:       unitsSold,
		reconciliations: reconciliations,
		unitsReconciled: unitsReconciled,
	}, nil
}

// SaleRecorded counts one confirmed sale of quantity units. Safe on a nil
// receiver so use cases can run without metrics in tests.
func (m *ledgerMetrics) SaleRecorded(ctx context.Context, productName string, quantity int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("product_name", productName))
	m.salesRecorded.Add(ctx, 1, attrs)
	m.unitsSold.Add(ctx, int64(quantity), attrs)
}

// Reconciled counts one applied reconciliation. delta is positive when stock
// was returned to the ledger and negative when extra units were sold.
func (m *ledgerMetrics) Reconciled(ctx context.Context, productName string, delta int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("product_name", productName))
	m.reconciliations.Add(ctx, 1, attrs)
	m.unitsReconciled.Add(ctx, int64(delta), attrs)
}

func initMeter() (*sdkmetric.MeterProvider, error) {
	ctx := context.Background()

	otlpEndpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(otlpEndpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(getEnv("SERVICE_NAME", "ledger-service")),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}
