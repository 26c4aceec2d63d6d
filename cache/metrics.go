package cache

import "github.com/prometheus/client_golang/prometheus"

// Option configures a Cache.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	name       string
}

// WithMetrics registers hit, miss, production and size metrics for the cache
// with reg, labelled with the cache name.
func WithMetrics(reg prometheus.Registerer, name string) Option {
	return func(o *options) {
		o.registerer = reg
		o.name = name
	}
}

type cacheMetrics struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	productions prometheus.Counter
	entries     prometheus.Gauge
}

func newCacheMetrics(reg prometheus.Registerer, name string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"cache": name}
	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "pipesh",
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Total number of cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "pipesh",
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Total number of cache misses",
		}),
		productions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "pipesh",
			Subsystem:   "cache",
			Name:        "productions_total",
			ConstLabels: labels,
			Help:        "Total number of producer invocations",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pipesh",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of entries in cache",
		}),
	}

	for _, c := range []prometheus.Collector{m.hits, m.misses, m.productions, m.entries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// The recording methods accept a nil receiver so that callers need not check
// whether metrics are enabled.

func (m *cacheMetrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *cacheMetrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *cacheMetrics) produced() {
	if m != nil {
		m.productions.Inc()
	}
}

func (m *cacheMetrics) size(n int) {
	if m != nil {
		m.entries.Set(float64(n))
	}
}
