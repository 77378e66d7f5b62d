package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "natal"

// MetricsSnapshot holds the chart outcomes observed since the previous
// snapshot.
type MetricsSnapshot struct {
	ChartsTotal       int     `json:"charts_total"`
	ChartsFailed      int     `json:"charts_failed"`
	ChartsDegraded    int     `json:"charts_degraded"`
	ChartsApproximate int     `json:"charts_approximate"`
	DegradedRate      float64 `json:"degraded_rate"`
	// LayerFailures counts position layers that were tried and rejected.
	LayerFailures map[string]int `json:"layer_failures,omitempty"`

	WindowStart time.Time `json:"window_start"`
	CollectedAt time.Time `json:"collected_at"`
}

// Collector records chart, ephemeris and geocoding outcomes as Prometheus
// metrics on its own registry, and keeps a resettable window of counts for
// alerting.
type Collector struct {
	registry *prometheus.Registry

	charts          *prometheus.CounterVec
	approximate     prometheus.Counter
	layerUsed       *prometheus.CounterVec
	layerFailed     *prometheus.CounterVec
	locationLookups *prometheus.CounterVec
	locationCache   *prometheus.CounterVec

	mu     sync.Mutex
	window MetricsSnapshot
	now    func() time.Time
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	charts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_total",
			Help:      "Charts calculated, by status (ok, degraded, failed).",
		},
		[]string{"status"},
	)
	approximate := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_approximate_total",
			Help:      "Charts whose UTC offset was estimated from longitude.",
		},
	)
	layerUsed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ephemeris_layer_total",
			Help:      "Position results served, by ephemeris layer.",
		},
		[]string{"layer"},
	)
	layerFailed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ephemeris_layer_failures_total",
			Help:      "Ephemeris layer attempts that failed or were rejected.",
		},
		[]string{"layer"},
	)
	locationLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_lookups_total",
			Help:      "Place lookups, by the source that answered.",
		},
		[]string{"source"},
	)
	locationCache := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_cache_total",
			Help:      "Location cache reads, by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	registry.MustRegister(charts, approximate, layerUsed, layerFailed, locationLookups, locationCache)

	c := &Collector{
		registry:        registry,
		charts:          charts,
		approximate:     approximate,
		layerUsed:       layerUsed,
		layerFailed:     layerFailed,
		locationLookups: locationLookups,
		locationCache:   locationCache,
		now:             time.Now,
	}
	c.window = c.emptyWindow()
	return c
}

// Registry returns the Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ChartCompleted records a successfully assembled chart.
func (c *Collector) ChartCompleted(degraded, approximate bool) {
	status := "ok"
	if degraded {
		status = "degraded"
	}
	c.charts.WithLabelValues(status).Inc()
	if approximate {
		c.approximate.Inc()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.ChartsTotal++
	if degraded {
		c.window.ChartsDegraded++
	}
	if approximate {
		c.window.ChartsApproximate++
	}
}

// ChartFailed records a chart request that produced no chart.
func (c *Collector) ChartFailed() {
	c.charts.WithLabelValues("failed").Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.ChartsTotal++
	c.window.ChartsFailed++
}

// LayerUsed implements ephemeris.Observer.
func (c *Collector) LayerUsed(layer string) {
	c.layerUsed.WithLabelValues(layer).Inc()
}

// LayerFailed implements ephemeris.Observer.
func (c *Collector) LayerFailed(layer string) {
	c.layerFailed.WithLabelValues(layer).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.LayerFailures[layer]++
}

// LocationResolved implements geocode.Observer.
func (c *Collector) LocationResolved(source string) {
	c.locationLookups.WithLabelValues(source).Inc()
}

// LocationCache implements geocode.Observer.
func (c *Collector) LocationCache(result string) {
	c.locationCache.WithLabelValues(result).Inc()
}

// Collect returns the counts observed since the previous call and starts a
// new window.
func (c *Collector) Collect() *MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.window
	snap.CollectedAt = c.now().UTC()
	if completed := snap.ChartsTotal - snap.ChartsFailed; completed > 0 {
		snap.DegradedRate = float64(snap.ChartsDegraded) / float64(completed)
	}

	c.window = c.emptyWindow()
	return &snap
}

func (c *Collector) emptyWindow() MetricsSnapshot {
	return MetricsSnapshot{
		LayerFailures: make(map[string]int),
		WindowStart:   c.now().UTC(),
	}
}
