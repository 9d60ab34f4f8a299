package observability_test

import (
	"ArtistExchange/internal/observability"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestReadiness(t *testing.T) {
	h := observability.NewHealthChecker()

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: got %d, want 503", rec.Code)
	}

	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready: got %d, want 200", rec.Code)
	}

	h.AddCheck("postgres", func(ctx context.Context) error { return errors.New("connection refused") })
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing check: got %d, want 503", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Failed map[string]string `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.Failed["postgres"] != "connection refused" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	observability.NewHealthChecker().LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("got %d, want 200", rec.Code)
	}
}

func TestLoggerComponentField(t *testing.T) {
	var buf bytes.Buffer
	log := observability.NewLoggerTo(&buf, "core", zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	log.Info().Str("symbol", "DRAK").Msg("token created")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "core" || line["symbol"] != "DRAK" {
		t.Errorf("unexpected fields %v", line)
	}
}

func TestParseLogLevel(t *testing.T) {
	if observability.ParseLogLevel("debug") != zerolog.DebugLevel {
		t.Error("debug")
	}
	if observability.ParseLogLevel("bogus") != zerolog.InfoLevel {
		t.Error("unknown levels default to info")
	}
}

func TestMetrics_IsolatedRegistry(t *testing.T) {
	m := observability.NewMetricsWith(prometheus.NewRegistry())
	m.SetChannelMetrics("persist", 5, 10)

	if got := testutil.ToFloat64(m.ChannelUtilization.WithLabelValues("persist")); got != 0.5 {
		t.Errorf("utilization: got %v, want 0.5", got)
	}

	// a second set on its own registry must not panic
	observability.NewMetricsWith(prometheus.NewRegistry())
}
