package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds all telemetry instruments and providers.
type Telemetry struct {
	meterProvider metric.MeterProvider
	tracer        trace.Tracer
	meter         metric.Meter
	exporter      *prometheus.Exporter

	// Business metrics
	downloadsTotal   metric.Int64Counter
	downloadsActive  metric.Int64UpDownCounter
	downloadDuration metric.Float64Histogram
	deliveriesTotal  metric.Int64Counter
	deliveryRetries  metric.Int64Counter
	ledgerOpsTotal   metric.Int64Counter
	ledgerOpDuration metric.Float64Histogram

	// Process health
	memoryUsage    metric.Int64Gauge
	goroutineCount metric.Int64Gauge
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
}

// New creates a new telemetry instance. When disabled, all recording methods
// are no-ops on the zero-valued instruments.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		meterProvider: meterProvider,
		tracer:        otel.Tracer(cfg.ServiceName),
		meter:         otel.Meter(cfg.ServiceName),
		exporter:      exporter,
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	go t.collectProcessMetrics(ctx)

	return t, nil
}

// RecordDownload records one finished retrieval attempt. Attributes stay
// bounded: service is the classifier table, status one of success/error.
func (t *Telemetry) RecordDownload(service, status string, duration time.Duration) {
	if t.downloadsTotal != nil {
		t.downloadsTotal.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("service", service),
				attribute.String("status", status),
			),
		)
	}

	if t.downloadDuration != nil {
		t.downloadDuration.Record(context.Background(), duration.Seconds(),
			metric.WithAttributes(
				attribute.String("service", service),
				attribute.String("status", status),
			),
		)
	}
}

// IncrementActiveDownloads increments the in-flight retrieval counter.
func (t *Telemetry) IncrementActiveDownloads() {
	if t.downloadsActive != nil {
		t.downloadsActive.Add(context.Background(), 1)
	}
}

// DecrementActiveDownloads decrements the in-flight retrieval counter.
func (t *Telemetry) DecrementActiveDownloads() {
	if t.downloadsActive != nil {
		t.downloadsActive.Add(context.Background(), -1)
	}
}

// RecordDelivery records a finished artifact delivery.
func (t *Telemetry) RecordDelivery(status string) {
	if t.deliveriesTotal != nil {
		t.deliveriesTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("status", status)),
		)
	}
}

// RecordDeliveryRetry records one retried send attempt.
func (t *Telemetry) RecordDeliveryRetry() {
	if t.deliveryRetries != nil {
		t.deliveryRetries.Add(context.Background(), 1)
	}
}

// InstrumentLedgerOp wraps a ledger operation with a span and duration/status
// metrics.
func (t *Telemetry) InstrumentLedgerOp(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operation)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", "ledger"),
		attribute.String("operation", operation),
	)

	err := fn(ctx)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"

		span.SetStatus(codes.Error, err.Error())
	}

	if t.ledgerOpsTotal != nil {
		t.ledgerOpsTotal.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("operation", operation),
				attribute.String("status", status),
			),
		)
	}

	if t.ledgerOpDuration != nil {
		t.ledgerOpDuration.Record(context.Background(), duration.Seconds(),
			metric.WithAttributes(
				attribute.String("operation", operation),
				attribute.String("status", status),
			),
		)
	}

	return err
}

// Handler returns the HTTP handler for the metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t.exporter == nil {
		return http.NotFoundHandler()
	}

	return promhttp.Handler()
}

// Shutdown gracefully shuts down the telemetry system.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		return mp.Shutdown(ctx)
	}

	return nil
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	t.downloadsTotal, err = t.meter.Int64Counter(
		"downloads_total",
		metric.WithDescription("Total number of track retrievals"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads_total counter: %w", err)
	}

	t.downloadsActive, err = t.meter.Int64UpDownCounter(
		"downloads_active",
		metric.WithDescription("Number of retrievals currently in flight"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads_active counter: %w", err)
	}

	t.downloadDuration, err = t.meter.Float64Histogram(
		"download_duration_seconds",
		metric.WithDescription("Track retrieval duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create download_duration histogram: %w", err)
	}

	t.deliveriesTotal, err = t.meter.Int64Counter(
		"deliveries_total",
		metric.WithDescription("Total number of artifact deliveries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create deliveries_total counter: %w", err)
	}

	t.deliveryRetries, err = t.meter.Int64Counter(
		"delivery_retries_total",
		metric.WithDescription("Total number of retried send attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery_retries counter: %w", err)
	}

	t.ledgerOpsTotal, err = t.meter.Int64Counter(
		"ledger_operations_total",
		metric.WithDescription("Total number of ledger operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger_operations counter: %w", err)
	}

	t.ledgerOpDuration, err = t.meter.Float64Histogram(
		"ledger_operation_duration_seconds",
		metric.WithDescription("Ledger operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger_operation_duration histogram: %w", err)
	}

	t.memoryUsage, err = t.meter.Int64Gauge(
		"process_memory_bytes",
		metric.WithDescription("Process heap memory in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create process_memory gauge: %w", err)
	}

	t.goroutineCount, err = t.meter.Int64Gauge(
		"process_goroutines",
		metric.WithDescription("Number of goroutines"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create process_goroutines gauge: %w", err)
	}

	return nil
}

func (t *Telemetry) collectProcessMetrics(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats

			runtime.ReadMemStats(&m)

			t.memoryUsage.Record(ctx, int64(m.HeapAlloc))
			t.goroutineCount.Record(ctx, int64(runtime.NumGoroutine()))
		}
	}
}
