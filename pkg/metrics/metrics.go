// Package metrics is a small Prometheus-text-format registry for the API
// and ingest binaries. Metrics are registered by name; labels are baked
// into the name with WithLabels and split back out at render time.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets cover request latencies from 5ms to 10s.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Counter is a monotonically increasing count.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Inc()         { c.n.Add(1) }
func (c *Counter) Add(d int64)  { c.n.Add(d) }
func (c *Counter) Value() int64 { return c.n.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	n atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.n.Store(v) }
func (g *Gauge) Inc()         { g.n.Add(1) }
func (g *Gauge) Dec()         { g.n.Add(-1) }
func (g *Gauge) Value() int64 { return g.n.Load() }

// Histogram accumulates observations into fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	bounds  []float64
	counts  []int64 // one per bound
	sum     float64
	samples int64
}

// Observe records a single value in seconds.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, bound := range h.bounds {
		if v <= bound {
			h.counts[i]++
		}
	}
	h.sum += v
	h.samples++
}

// Since observes the elapsed time from start, for use with defer.
func (h *Histogram) Since(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// WithLabels bakes label pairs into a metric name, producing the
// `name{k="v",...}` form the registry understands. Pairs must come in
// key, value order.
func WithLabels(name string, pairs ...string) string {
	if len(pairs) < 2 {
		return name
	}
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('{')
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%q", pairs[i], pairs[i+1])
	}
	sb.WriteByte('}')
	return sb.String()
}

// splitName separates a `name{labels}` series into its family name and the
// raw label body.
func splitName(series string) (family, labels string) {
	if i := strings.IndexByte(series, '{'); i >= 0 {
		return series[:i], strings.TrimSuffix(series[i+1:], "}")
	}
	return series, ""
}

// Registry holds all metrics and renders them in Prometheus text format.
// Registering the same name twice returns the existing metric.
type Registry struct {
	mu         sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	help       map[string]string // family -> HELP text
	kinds      map[string]string // family -> TYPE
	order      []string          // series names in registration order
}

func New() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		help:       make(map[string]string),
		kinds:      make(map[string]string),
	}
}

// register records family metadata and series order. Caller holds mu.
func (r *Registry) register(series, help, kind string) {
	family, _ := splitName(series)
	if _, seen := r.kinds[family]; !seen {
		r.help[family] = help
		r.kinds[family] = kind
	}
	r.order = append(r.order, series)
}

func (r *Registry) Counter(series, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[series]; ok {
		return c
	}
	c := &Counter{}
	r.counters[series] = c
	r.register(series, help, "counter")
	return c
}

func (r *Registry) Gauge(series, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[series]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[series] = g
	r.register(series, help, "gauge")
	return g
}

// Histogram registers a histogram; nil buckets use DefaultBuckets.
func (r *Registry) Histogram(series, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[series]; ok {
		return h
	}
	if buckets == nil {
		buckets = DefaultBuckets
	}
	bounds := make([]float64, len(buckets))
	copy(bounds, buckets)
	sort.Float64s(bounds)
	h := &Histogram{bounds: bounds, counts: make([]int64, len(bounds))}
	r.histograms[series] = h
	r.register(series, help, "histogram")
	return h
}

// Render writes every metric in Prometheus exposition format.
func (r *Registry) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	announced := make(map[string]bool)
	for _, series := range r.order {
		family, labels := splitName(series)
		if !announced[family] {
			fmt.Fprintf(&sb, "# HELP %s %s\n", family, r.help[family])
			fmt.Fprintf(&sb, "# TYPE %s %s\n", family, r.kinds[family])
			announced[family] = true
		}
		switch {
		case r.counters[series] != nil:
			fmt.Fprintf(&sb, "%s %d\n", series, r.counters[series].Value())
		case r.gauges[series] != nil:
			fmt.Fprintf(&sb, "%s %d\n", series, r.gauges[series].Value())
		case r.histograms[series] != nil:
			renderHistogram(&sb, family, labels, r.histograms[series])
		}
	}
	return sb.String()
}

// renderHistogram emits cumulative _bucket series plus _sum and _count,
// merging the le label into any baked-in labels.
func renderHistogram(sb *strings.Builder, family, labels string, h *Histogram) {
	h.mu.Lock()
	defer h.mu.Unlock()

	withLE := func(le string) string {
		if labels == "" {
			return fmt.Sprintf(`{le=%q}`, le)
		}
		return fmt.Sprintf(`{%s,le=%q}`, labels, le)
	}
	for i, bound := range h.bounds {
		fmt.Fprintf(sb, "%s_bucket%s %d\n", family, withLE(formatBound(bound)), h.counts[i])
	}
	fmt.Fprintf(sb, "%s_bucket%s %d\n", family, withLE("+Inf"), h.samples)
	suffix := ""
	if labels != "" {
		suffix = "{" + labels + "}"
	}
	fmt.Fprintf(sb, "%s_sum%s %g\n", family, suffix, h.sum)
	fmt.Fprintf(sb, "%s_count%s %d\n", family, suffix, h.samples)
}

func formatBound(b float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", b), "0"), ".")
}

// Handler serves the registry at GET /metrics.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, r.Render())
	})
}

// Serve blocks serving /metrics on the given port.
func (r *Registry) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

// ServeAsync serves /metrics on a background goroutine.
func (r *Registry) ServeAsync(port int) {
	go func() { _ = r.Serve(port) }()
}
