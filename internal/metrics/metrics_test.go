package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// value reads the current value of a counter or gauge
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Failed to read metric: %v", err)
	}
	if c := out.GetCounter(); c != nil {
		return c.GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestSessionMetrics(t *testing.T) {
	before := value(t, sessionsTotal.WithLabelValues("duration"))
	active := value(t, activeSessions)

	SessionStarted()
	if got := value(t, activeSessions); got != active+1 {
		t.Errorf("Expected %v active sessions, got %v", active+1, got)
	}

	SessionStopped("duration", 5*time.Second)
	if got := value(t, activeSessions); got != active {
		t.Errorf("Expected %v active sessions, got %v", active, got)
	}
	if got := value(t, sessionsTotal.WithLabelValues("duration")); got != before+1 {
		t.Errorf("Expected %v sessions, got %v", before+1, got)
	}
}

func TestNormalized(t *testing.T) {
	before := value(t, conversions.WithLabelValues("passthrough"))
	Normalized("passthrough", 0)
	if got := value(t, conversions.WithLabelValues("passthrough")); got != before+1 {
		t.Errorf("Expected %v, got %v", before+1, got)
	}
}

func TestRequest(t *testing.T) {
	tests := []struct {
		status int
		label  string
	}{
		{200, "200"},
		{503, "503"},
		{0, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			before := value(t, requests.WithLabelValues("test_endpoint", tt.label))
			Request("test_endpoint", tt.status, 10*time.Millisecond)
			if got := value(t, requests.WithLabelValues("test_endpoint", tt.label)); got != before+1 {
				t.Errorf("Expected %v, got %v", before+1, got)
			}
		})
	}
}

func TestCounters(t *testing.T) {
	events := value(t, streamEvents)
	StreamEvent()
	StreamEvent()
	if got := value(t, streamEvents); got != events+2 {
		t.Errorf("Expected %v stream events, got %v", events+2, got)
	}

	retried := value(t, retries.WithLabelValues("transcribe"))
	Retry("transcribe")
	if got := value(t, retries.WithLabelValues("transcribe")); got != retried+1 {
		t.Errorf("Expected %v retries, got %v", retried+1, got)
	}

	devices := value(t, deviceErrors)
	DeviceError()
	if got := value(t, deviceErrors); got != devices+1 {
		t.Errorf("Expected %v device errors, got %v", devices+1, got)
	}
}

func TestHandler(t *testing.T) {
	StreamEvent()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ezs2t_stream_events_total") {
		t.Error("Expected stream event counter in output")
	}
}
