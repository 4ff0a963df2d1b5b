package xguardmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics implements xguard.Metrics with four Prometheus counters,
// registered against a caller-supplied registerer so it composes with
// an application's existing /metrics endpoint instead of always
// reaching for prometheus.DefaultRegisterer.
type Metrics struct {
	bloomRejected             prometheus.Counter
	eviction                  prometheus.Counter
	breakdownLoaderInvocation prometheus.Counter
	lockAcquisitionTimeout    prometheus.Counter
}

// New registers the counters against reg and returns a ready Metrics.
// Pass prometheus.DefaultRegisterer for the usual global endpoint.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		bloomRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "bloom_rejected_total",
			Help:      "GETs short-circuited by the penetration check's bloom filter.",
		}),
		eviction: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "metadata_eviction_total",
			Help:      "Descriptor evictions from the metadata registry's admission caches.",
		}),
		breakdownLoaderInvocation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "breakdown_loader_invocations_total",
			Help:      "Loader calls that actually reached user code under the breakdown protocol.",
		}),
		lockAcquisitionTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lock_acquisition_timeouts_total",
			Help:      "Distributed lease acquisitions that did not complete within their wait bound.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.bloomRejected, m.eviction, m.breakdownLoaderInvocation, m.lockAcquisitionTimeout,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) BloomRejected()             { m.bloomRejected.Inc() }
func (m *Metrics) Eviction()                  { m.eviction.Inc() }
func (m *Metrics) BreakdownLoaderInvocation() { m.breakdownLoaderInvocation.Inc() }
func (m *Metrics) LockAcquisitionTimeout()    { m.lockAcquisitionTimeout.Inc() }
