package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterAndGauge(t *testing.T) {
	reg := New()
	queries := reg.Counter("chat_queries_total", "Total chat queries")
	queries.Inc()
	queries.Inc()
	queries.Add(3)
	if queries.Value() != 5 {
		t.Fatalf("counter = %d, want 5", queries.Value())
	}

	active := reg.Gauge("ingest_active_docs", "Docs in flight")
	active.Inc()
	active.Inc()
	active.Dec()
	if active.Value() != 1 {
		t.Fatalf("gauge = %d, want 1", active.Value())
	}
	active.Set(42)
	if active.Value() != 42 {
		t.Fatalf("gauge after Set = %d, want 42", active.Value())
	}
}

func TestRegistry_SameNameReturnsSameMetric(t *testing.T) {
	reg := New()
	a := reg.Counter("ingest_errors_total", "Errors")
	b := reg.Counter("ingest_errors_total", "Errors")
	if a != b {
		t.Fatal("re-registration created a new counter")
	}
	a.Inc()
	if b.Value() != 1 {
		t.Fatal("aliased counters diverged")
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("ingest_docs_total", "source", "gutenberg")
	want := `ingest_docs_total{source="gutenberg"}`
	if got != want {
		t.Fatalf("WithLabels = %q, want %q", got, want)
	}
	if got := WithLabels("plain"); got != "plain" {
		t.Fatalf("no-label form = %q", got)
	}
}

func TestRender_LabeledSeriesShareFamily(t *testing.T) {
	reg := New()
	reg.Counter(WithLabels("ingest_docs_total", "source", "gutenberg"), "Docs ingested").Add(7)
	reg.Counter(WithLabels("ingest_docs_total", "source", "archive"), "Docs ingested").Inc()

	out := reg.Render()
	if strings.Count(out, "# HELP ingest_docs_total") != 1 {
		t.Fatalf("HELP emitted more than once:\n%s", out)
	}
	if strings.Count(out, "# TYPE ingest_docs_total counter") != 1 {
		t.Fatalf("TYPE emitted more than once:\n%s", out)
	}
	if !strings.Contains(out, `ingest_docs_total{source="gutenberg"} 7`) {
		t.Fatalf("missing gutenberg series:\n%s", out)
	}
	if !strings.Contains(out, `ingest_docs_total{source="archive"} 1`) {
		t.Fatalf("missing archive series:\n%s", out)
	}
}

func TestHistogram_CumulativeBuckets(t *testing.T) {
	reg := New()
	h := reg.Histogram("chat_request_seconds", "Request latency", []float64{0.1, 0.5, 1})
	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(2)

	out := reg.Render()
	for _, line := range []string{
		`chat_request_seconds_bucket{le="0.1"} 1`,
		`chat_request_seconds_bucket{le="0.5"} 2`,
		`chat_request_seconds_bucket{le="1"} 2`,
		`chat_request_seconds_bucket{le="+Inf"} 3`,
		`chat_request_seconds_count 3`,
	} {
		if !strings.Contains(out, line) {
			t.Fatalf("missing %q in:\n%s", line, out)
		}
	}
	if !strings.Contains(out, "chat_request_seconds_sum 2.35") {
		t.Fatalf("missing sum in:\n%s", out)
	}
}

func TestHistogram_LabeledBucketsMergeLE(t *testing.T) {
	reg := New()
	h := reg.Histogram(WithLabels("pipeline_seconds", "stage", "embed"), "Stage latency", []float64{1})
	h.Observe(0.5)

	out := reg.Render()
	if !strings.Contains(out, `pipeline_seconds_bucket{stage="embed",le="1"} 1`) {
		t.Fatalf("labels not merged with le:\n%s", out)
	}
	if !strings.Contains(out, `pipeline_seconds_count{stage="embed"} 1`) {
		t.Fatalf("labeled count missing:\n%s", out)
	}
}

func TestHistogram_Since(t *testing.T) {
	reg := New()
	h := reg.Histogram("op_seconds", "Op latency", nil)
	h.Since(time.Now().Add(-10 * time.Millisecond))
	if h.samples != 1 {
		t.Fatalf("samples = %d, want 1", h.samples)
	}
	if h.sum <= 0 {
		t.Fatalf("sum = %v, want positive elapsed time", h.sum)
	}
}

func TestHandler_ServesTextFormat(t *testing.T) {
	reg := New()
	reg.Counter("up_total", "Liveness ticks").Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "up_total 1") {
		t.Fatalf("body missing series:\n%s", rec.Body.String())
	}
}
