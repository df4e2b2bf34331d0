package observe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q data is %T", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestFrameCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesProcessed.Add(ctx, 5)
	m.FramesDropped.Add(ctx, 2)
	m.FramesDetected.Add(ctx, 3)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "resonance.frames.processed"); got != 5 {
		t.Errorf("processed = %d, want 5", got)
	}
	if got := sumInt64(t, rm, "resonance.frames.dropped"); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
	if got := sumInt64(t, rm, "resonance.frames.detected"); got != 3 {
		t.Errorf("detected = %d, want 3", got)
	}
	if got := sumInt64(t, rm, "resonance.active_sessions"); got != 0 {
		t.Errorf("active sessions = %d, want 0", got)
	}
}

func TestRecordStoreRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStoreRequest(ctx, "save", "remote", nil)
	m.RecordStoreRequest(ctx, "save", "local-fallback", errors.New("down"))
	m.RecordFallback(ctx, "save")

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "resonance.store.requests"); got != 2 {
		t.Errorf("store requests = %d, want 2", got)
	}
	if got := sumInt64(t, rm, "resonance.store.fallbacks"); got != 1 {
		t.Errorf("fallbacks = %d, want 1", got)
	}
}

func TestMiddlewareRecordsDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}

	rm := collect(t, reader)
	met := findMetric(rm, "resonance.http.request.duration")
	if met == nil {
		t.Fatal("duration histogram missing")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("unexpected histogram data: %+v", met.Data)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m, reader := newTestMetrics(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/profiles/{id}", func(w http.ResponseWriter, r *http.Request) {})
	h := Middleware(m)(mux)

	for _, id := range []string{"a", "b", "c"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/profiles/"+id, nil))
	}

	hist := findMetric(collect(t, reader), "resonance.http.request.duration").Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d series, want one per route", len(hist.DataPoints))
	}
	path, _ := hist.DataPoints[0].Attributes.Value("path")
	if path.AsString() != "GET /api/profiles/{id}" {
		t.Errorf("path label = %q", path.AsString())
	}
}
