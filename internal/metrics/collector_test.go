package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter_SameSeriesShared(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("x_total", "help", `outcome="ok"`)
	b := c.Counter("x_total", "help", `outcome="ok"`)
	a.Inc()
	b.Inc()
	if a.Value() != 2 {
		t.Fatalf("expected shared counter value 2, got %d", a.Value())
	}
}

func TestHistogram_BucketsAndInf(t *testing.T) {
	c := NewMetricsCollector()
	h := c.Histogram("lat_seconds", "help", "", []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(100)

	out := c.Render()
	for _, want := range []string{
		`lat_seconds_bucket{le="1"} 1`,
		`lat_seconds_bucket{le="5"} 2`,
		`lat_seconds_bucket{le="+Inf"} 3`,
		`lat_seconds_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestHandler_ContentType(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("req_total", "requests", `outcome="replied"`).Inc()

	rr := httptest.NewRecorder()
	c.Handler()(rr, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), `req_total{outcome="replied"} 1`) {
		t.Fatalf("counter missing from output:\n%s", rr.Body.String())
	}
}
