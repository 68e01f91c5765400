package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authcore "github.com/harborline/authcore"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func scrape(t *testing.T, c *Collector) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestScrapeIncludesCountersAndHistogram(t *testing.T) {
	snap := authcore.MetricsSnapshot{LatencyEnabled: true}
	snap.Counters[authcore.MetricLoginSuccess] = 7
	snap.VerifyLatency.Buckets = [8]uint64{1, 2, 3, 4, 5, 6, 7, 8}
	snap.VerifyLatency.Count = 36
	snap.VerifyLatency.SumMicros = 1_500_000

	out := scrape(t, NewCollectorFromSource(fakeSource{snapshot: snap, dropped: 2}))

	for _, want := range []string{
		"authcore_login_success_total 7",
		"authcore_login_failure_total 0",
		`authcore_verify_latency_seconds_bucket{le="+Inf"} 36`,
		"authcore_verify_latency_seconds_count 36",
		"authcore_verify_latency_seconds_sum 1.5",
		"authcore_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in scrape output, got:\n%s", want, out)
		}
	}
}

func TestLatencySeriesAbsentWhenDisabled(t *testing.T) {
	snap := authcore.MetricsSnapshot{}
	snap.Counters[authcore.MetricLoginSuccess] = 1

	out := scrape(t, NewCollectorFromSource(fakeSource{snapshot: snap}))
	if strings.Contains(out, "authcore_verify_latency_seconds") {
		t.Fatalf("latency series exported without histograms enabled:\n%s", out)
	}
	if !strings.Contains(out, "authcore_login_success_total 1") {
		t.Fatalf("counters missing from output:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
}
