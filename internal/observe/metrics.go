// Package observe holds the OpenTelemetry instruments the assessment service
// records. Tests build a Metrics with NewMetrics and an SDK MeterProvider
// backed by a ManualReader; production code uses the global provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/windfall/pronounce_service"

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// Assessments counts finished assessments. Attributes: mode, outcome.
	Assessments metric.Int64Counter

	// AssessmentDuration tracks end-to-end assessment latency in seconds.
	AssessmentDuration metric.Float64Histogram

	// ProviderRetries counts retried provider calls. Attribute: provider.
	ProviderRetries metric.Int64Counter

	// Samples counts synthesis requests. Attribute: outcome.
	Samples metric.Int64Counter
}

var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Assessments, err = m.Int64Counter("pronounce.assessments",
		metric.WithDescription("Finished assessments by mode and outcome."),
	); err != nil {
		return nil, err
	}
	if met.AssessmentDuration, err = m.Float64Histogram("pronounce.assessment.duration",
		metric.WithDescription("Latency of one assessment, capture to report."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRetries, err = m.Int64Counter("pronounce.provider.retries",
		metric.WithDescription("Retried calls to external speech and language providers."),
	); err != nil {
		return nil, err
	}
	if met.Samples, err = m.Int64Counter("pronounce.samples",
		metric.WithDescription("Expected-pronunciation samples by outcome."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Default returns Metrics on the global MeterProvider. It panics only if the
// provider rejects instrument creation, which the global no-op never does.
func Default() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		panic("observe: " + err.Error())
	}
	return m
}

// RecordAssessment records one finished assessment. outcome is "ok" or an
// error code.
func (m *Metrics) RecordAssessment(ctx context.Context, mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	)
	m.Assessments.Add(ctx, 1, attrs)
	m.AssessmentDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordRetry records one retry against provider.
func (m *Metrics) RecordRetry(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.ProviderRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordSample records one synthesis request.
func (m *Metrics) RecordSample(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Samples.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
