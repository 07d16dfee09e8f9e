package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"go.aimuz.me/murmur/telemetry"
	"go.aimuz.me/murmur/transform"
)

// Transcription outcomes recorded on murmur.transcriptions.
const (
	outcomeOK        = "ok"
	outcomeEmpty     = "empty"
	outcomeError     = "error"
	outcomeNoSamples = "no_samples"
	outcomeCancelled = "cancelled"
)

type pipelineMetrics struct {
	transcriptions metric.Int64Counter
	postprocess    metric.Int64Counter
	stopDuration   metric.Float64Histogram
}

func newPipelineMetrics(meter metric.Meter) *pipelineMetrics {
	if meter == nil {
		meter = otel.Meter(telemetry.MeterName)
	}
	m := &pipelineMetrics{}
	var err error
	if m.transcriptions, err = meter.Int64Counter("murmur.transcriptions",
		metric.WithDescription("Dictation stop runs by outcome")); err != nil {
		slog.Warn("create metric", "name", "murmur.transcriptions", "error", err)
	}
	if m.postprocess, err = meter.Int64Counter("murmur.postprocess",
		metric.WithDescription("Post-processing results")); err != nil {
		slog.Warn("create metric", "name", "murmur.postprocess", "error", err)
	}
	if m.stopDuration, err = meter.Float64Histogram("murmur.stop_duration",
		metric.WithDescription("Time from key release to paste"),
		metric.WithUnit("s")); err != nil {
		slog.Warn("create metric", "name", "murmur.stop_duration", "error", err)
	}
	return m
}

func (m *pipelineMetrics) transcription(ctx context.Context, outcome string) {
	if m.transcriptions != nil {
		m.transcriptions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (m *pipelineMetrics) rewrite(ctx context.Context, outcome transform.Outcome) {
	if m.postprocess != nil {
		m.postprocess.Add(ctx, 1, metric.WithAttributes(attribute.String("result", string(outcome))))
	}
}

func (m *pipelineMetrics) stopped(ctx context.Context, start time.Time) {
	if m.stopDuration != nil {
		m.stopDuration.Record(ctx, time.Since(start).Seconds())
	}
}
