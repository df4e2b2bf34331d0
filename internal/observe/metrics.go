// Package observe holds the OpenTelemetry metric instruments used across
// resonance and the Prometheus bridge that exposes them.
//
// Libraries take a *Metrics so tests can build one over a ManualReader with
// NewMetrics. DefaultMetrics binds to the global meter provider.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/himanishpuri/resonance"

// Metrics holds all instruments. The OTel types are safe for concurrent use.
type Metrics struct {
	// FramesProcessed counts frames handed to the estimator.
	FramesProcessed metric.Int64Counter
	// FramesDropped counts frames discarded because the estimator was busy.
	FramesDropped metric.Int64Counter
	// FramesDetected counts frames that produced a pitch.
	FramesDetected metric.Int64Counter
	// EstimateDuration is the wall time of one estimator call.
	EstimateDuration metric.Float64Histogram

	ActiveSessions metric.Int64UpDownCounter

	// StoreRequests counts profile store calls. Attributes: op, origin, status.
	StoreRequests metric.Int64Counter
	// StoreFallbacks counts calls served locally after a remote failure.
	StoreFallbacks metric.Int64Counter

	// HTTPRequestDuration attributes: method, path, status.
	HTTPRequestDuration metric.Float64Histogram
}

var estimateBuckets = []float64{
	0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesProcessed, err = m.Int64Counter("resonance.frames.processed",
		metric.WithDescription("Frames analyzed by the pitch estimator."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("resonance.frames.dropped",
		metric.WithDescription("Frames discarded while the estimator was busy."),
	); err != nil {
		return nil, err
	}
	if met.FramesDetected, err = m.Int64Counter("resonance.frames.detected",
		metric.WithDescription("Frames that yielded a pitch."),
	); err != nil {
		return nil, err
	}
	if met.EstimateDuration, err = m.Float64Histogram("resonance.estimate.duration",
		metric.WithDescription("Latency of one pitch estimate."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(estimateBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("resonance.active_sessions",
		metric.WithDescription("Tuning sessions currently running."),
	); err != nil {
		return nil, err
	}
	if met.StoreRequests, err = m.Int64Counter("resonance.store.requests",
		metric.WithDescription("Profile store calls by operation, origin and status."),
	); err != nil {
		return nil, err
	}
	if met.StoreFallbacks, err = m.Int64Counter("resonance.store.fallbacks",
		metric.WithDescription("Profile store calls served locally after a remote failure."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("resonance.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide instance bound to
// otel.GetMeterProvider at first call.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStoreRequest counts one profile store call.
func (m *Metrics) RecordStoreRequest(ctx context.Context, op, origin string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("origin", origin),
			attribute.String("status", status),
		),
	)
}

// RecordFallback counts one call that fell back to the local store.
func (m *Metrics) RecordFallback(ctx context.Context, op string) {
	m.StoreFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
