package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/skillsenselab/asrkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds OpenTelemetry metric instruments for recognition observability.
type Metrics struct {
	recognizeTotal    metric.Int64Counter
	recognizeDuration metric.Float64Histogram
	recognizeActive   metric.Int64UpDownCounter
	pollTotal         metric.Int64Counter
	fallbackAttempts  metric.Int64Counter
	errorTotal        metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	recognizeTotal, err := meter.Int64Counter("asr.recognize.total",
		metric.WithDescription("Total number of recognition requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asr.recognize.total counter: %w", err)
	}

	recognizeDuration, err := meter.Float64Histogram("asr.recognize.duration",
		metric.WithDescription("Duration of recognition requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asr.recognize.duration histogram: %w", err)
	}

	recognizeActive, err := meter.Int64UpDownCounter("asr.recognize.active",
		metric.WithDescription("Number of recognition requests in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asr.recognize.active gauge: %w", err)
	}

	pollTotal, err := meter.Int64Counter("asr.poll.total",
		metric.WithDescription("Total number of task status polls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asr.poll.total counter: %w", err)
	}

	fallbackAttempts, err := meter.Int64Counter("asr.fallback.attempts",
		metric.WithDescription("Recognition attempts made by the fallback chain"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asr.fallback.attempts counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("asr.error.total",
		metric.WithDescription("Total errors by code and engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asr.error.total counter: %w", err)
	}

	return &Metrics{
		recognizeTotal:    recognizeTotal,
		recognizeDuration: recognizeDuration,
		recognizeActive:   recognizeActive,
		pollTotal:         pollTotal,
		fallbackAttempts:  fallbackAttempts,
		errorTotal:        errorTotal,
	}, nil
}

// RecordRecognizeStart increments the in-flight recognition count.
func (m *Metrics) RecordRecognizeStart(ctx context.Context) {
	m.recognizeActive.Add(ctx, 1)
}

// RecordRecognizeEnd decrements in-flight recognitions and records the
// completed request.
func (m *Metrics) RecordRecognizeEnd(ctx context.Context, engine, operation, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.recognizeActive.Add(ctx, -1)
	m.recognizeTotal.Add(ctx, 1, attrs)
	m.recognizeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("operation", operation),
	))
}

// RecordPoll records one poll of an asynchronous task.
func (m *Metrics) RecordPoll(ctx context.Context, engine, status string) {
	m.pollTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("status", status),
	))
}

// RecordFallbackAttempt records a recognition attempt made against an engine
// in the fallback chain.
func (m *Metrics) RecordFallbackAttempt(ctx context.Context, engine string, attempt int) {
	m.fallbackAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.Int("attempt", attempt),
	))
}

// RecordError records an error by code and engine.
func (m *Metrics) RecordError(ctx context.Context, code, engine string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("engine", engine),
	))
}
