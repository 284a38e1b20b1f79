// Package prom exports edgekv.Hooks events as Prometheus metrics.
package prom

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/edgekv"
)

// Hooks counts the events of one bucket. Build it with Metrics.For.
type Hooks struct {
	cacheLookups  *prometheus.CounterVec // result: hit, miss
	selfHeals     *prometheus.CounterVec // reason: corrupt, key_mismatch, decode
	setRejected   prometheus.Counter
	lazyEvictions prometheus.Counter
	upsertFalls   prometheus.Counter
	retries       prometheus.Counter
	retryDelay    prometheus.Observer
	clearAborts   prometheus.Counter
}

var _ edgekv.Hooks = (*Hooks)(nil)

// Metrics holds the collectors shared by every bucket.
type Metrics struct {
	cacheLookups  *prometheus.CounterVec
	selfHeals     *prometheus.CounterVec
	setRejected   *prometheus.CounterVec
	lazyEvictions *prometheus.CounterVec
	upsertFalls   *prometheus.CounterVec
	retries       *prometheus.CounterVec
	retryDelay    *prometheus.HistogramVec
	clearAborts   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// Calling it again with the same registry reuses the registered collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgekv",
			Subsystem: "kv",
			Name:      name,
			Help:      help,
		}, append([]string{"bucket"}, labels...))
	}
	m := &Metrics{
		cacheLookups:  counter("cache_lookups_total", "Local cache lookups by result", "result"),
		selfHeals:     counter("cache_self_heals_total", "Local cache entries dropped on read", "reason"),
		setRejected:   counter("cache_set_rejected_total", "Local cache writes rejected by the cache"),
		lazyEvictions: counter("lazy_evictions_total", "Expired objects deleted on read"),
		upsertFalls:   counter("upsert_fallbacks_total", "Puts that fell back from update to create"),
		retries:       counter("retries_total", "Backing store calls retried inside the consistency window"),
		retryDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "edgekv",
			Subsystem: "kv",
			Name:      "retry_delay_seconds",
			Help:      "Backoff delay before a retried backing store call",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9),
		}, []string{"bucket"}),
		clearAborts: counter("clear_aborted_total", "Clear calls stopped by a failed delete"),
	}

	var err error
	m.cacheLookups = register(reg, m.cacheLookups, &err)
	m.selfHeals = register(reg, m.selfHeals, &err)
	m.setRejected = register(reg, m.setRejected, &err)
	m.lazyEvictions = register(reg, m.lazyEvictions, &err)
	m.upsertFalls = register(reg, m.upsertFalls, &err)
	m.retries = register(reg, m.retries, &err)
	m.retryDelay = register(reg, m.retryDelay, &err)
	m.clearAborts = register(reg, m.clearAborts, &err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, or returns the collector already registered
// under the same descriptor. Failures accumulate in errp.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	*errp = errors.Join(*errp, err)
	return c
}

// For returns the hooks of one bucket.
func (m *Metrics) For(bucket string) *Hooks {
	return &Hooks{
		cacheLookups:  m.cacheLookups.MustCurryWith(prometheus.Labels{"bucket": bucket}),
		selfHeals:     m.selfHeals.MustCurryWith(prometheus.Labels{"bucket": bucket}),
		setRejected:   m.setRejected.WithLabelValues(bucket),
		lazyEvictions: m.lazyEvictions.WithLabelValues(bucket),
		upsertFalls:   m.upsertFalls.WithLabelValues(bucket),
		retries:       m.retries.WithLabelValues(bucket),
		retryDelay:    m.retryDelay.WithLabelValues(bucket),
		clearAborts:   m.clearAborts.WithLabelValues(bucket),
	}
}

func (h *Hooks) CacheHit(string)  { h.cacheLookups.WithLabelValues("hit").Inc() }
func (h *Hooks) CacheMiss(string) { h.cacheLookups.WithLabelValues("miss").Inc() }

func (h *Hooks) CacheSelfHeal(_ string, reason string) {
	h.selfHeals.WithLabelValues(reason).Inc()
}

func (h *Hooks) CacheSetRejected(string)      { h.setRejected.Inc() }
func (h *Hooks) LazyEvicted(string)           { h.lazyEvictions.Inc() }
func (h *Hooks) UpsertFallback(string, error) { h.upsertFalls.Inc() }
func (h *Hooks) ClearAborted(int, error)      { h.clearAborts.Inc() }

func (h *Hooks) RetryScheduled(_ int, delay time.Duration, _ error) {
	h.retries.Inc()
	h.retryDelay.Observe(delay.Seconds())
}
