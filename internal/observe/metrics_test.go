package observe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
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

func TestRecordExtraction(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExtraction(ctx, "gemini", "extract", "ok", 300*time.Millisecond)
	m.RecordExtraction(ctx, "gemini", "extract", "ok", 500*time.Millisecond)
	m.RecordExtraction(ctx, "gemini", "extract", "error", time.Second)

	rm := collect(t, reader)

	hist := findMetric(rm, "gymwhisper.extraction.duration")
	if hist == nil {
		t.Fatal("duration metric not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("duration metric is not a histogram")
	}
	if len(h.DataPoints) != 1 || h.DataPoints[0].Count != 3 {
		t.Errorf("histogram data points = %+v, want one point with count 3", h.DataPoints)
	}

	met := findMetric(rm, "gymwhisper.extraction.requests")
	if met == nil {
		t.Fatal("requests metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("requests metric is not a sum")
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value("status"); ok && v.AsString() == "ok" {
			if dp.Value != 2 {
				t.Errorf("ok count = %d, want 2", dp.Value)
			}
			return
		}
	}
	t.Error("data point with status=ok not found")
}

func TestRecordStaleCapture(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordStaleCapture(context.Background(), "discard")

	met := findMetric(collect(t, reader), "gymwhisper.capture.stale")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("data points = %+v", sum.DataPoints)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m, reader := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(Middleware(m))
	r.Get("/api/v1/ledgers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/ledgers/"+id, nil))
	}

	met := findMetric(collect(t, reader), "gymwhisper.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	h := met.Data.(metricdata.Histogram[float64])
	if len(h.DataPoints) != 1 {
		t.Fatalf("got %d data points, want 1 (ids must not become labels)", len(h.DataPoints))
	}
	route, _ := h.DataPoints[0].Attributes.Value("route")
	if route.AsString() != "/api/v1/ledgers/{id}" {
		t.Errorf("route = %q", route.AsString())
	}
	if h.DataPoints[0].Count != 2 {
		t.Errorf("count = %d, want 2", h.DataPoints[0].Count)
	}
}

func TestInitProviderServesMetrics(t *testing.T) {
	p, err := InitProvider(ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.MeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.SessionsFinalized.Add(context.Background(), 1)

	srv := httptest.NewServer(p.Handler)
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "gymwhisper_history_sessions_finalized") {
		t.Errorf("exposition missing finalized counter:\n%s", body)
	}
}
