package observe_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/windfall/pronounce_service/internal/observe"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordAssessment(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAssessment(ctx, "scripted", "ok", 1500*time.Millisecond)
	m.RecordAssessment(ctx, "scripted", "ok", 500*time.Millisecond)
	m.RecordAssessment(ctx, "unscripted", "ASSESSOR_UNAVAILABLE", time.Second)

	got := findMetric(t, reader, "pronounce.assessments")
	if got == nil {
		t.Fatal("pronounce.assessments not recorded")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data type = %T, want Sum[int64]", got.Data)
	}
	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		counts[outcome.AsString()] += dp.Value
	}
	if counts["ok"] != 2 || counts["ASSESSOR_UNAVAILABLE"] != 1 {
		t.Errorf("counts = %v", counts)
	}

	hist := findMetric(t, reader, "pronounce.assessment.duration")
	if hist == nil {
		t.Fatal("pronounce.assessment.duration not recorded")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data type = %T, want Histogram[float64]", hist.Data)
	}
	var n uint64
	for _, dp := range h.DataPoints {
		n += dp.Count
	}
	if n != 3 {
		t.Errorf("histogram count = %d, want 3", n)
	}
}

func TestRecordRetry(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordRetry(context.Background(), "azure_speech")
	m.RecordRetry(context.Background(), "azure_speech")

	got := findMetric(t, reader, "pronounce.provider.retries")
	if got == nil {
		t.Fatal("pronounce.provider.retries not recorded")
	}
	sum := got.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Errorf("data points = %+v", sum.DataPoints)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *observe.Metrics
	m.RecordAssessment(context.Background(), "scripted", "ok", time.Second)
	m.RecordRetry(context.Background(), "x")
	m.RecordSample(context.Background(), "ok")
}
