// Package metrics exposes the transfer pipeline counters. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "memberflow"

// Invite outcomes.
const (
	OutcomeAdded       = "added"
	OutcomePrivacy     = "privacy"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Job results.
const (
	JobCompleted = "completed"
	JobFailed    = "failed"
)

type Metrics struct {
	invites        *prometheus.CounterVec
	jobs           *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	poolSize       prometheus.Gauge
	accountsPruned prometheus.Counter
	healthSweeps   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		invites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_total",
			Help:      "invite attempts by outcome",
		}, []string{"outcome"}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "finished transfer jobs by result",
		}, []string{"result"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "jobs waiting in the queue",
		}),
		poolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_pool_size",
			Help:      "accounts in the credential store",
		}),
		accountsPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_pruned_total",
			Help:      "accounts removed by the health monitor",
		}),
		healthSweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_sweeps_total",
			Help:      "completed health sweeps",
		}),
	}
}

func (m *Metrics) Invite(outcome string) {
	if m == nil {
		return
	}
	m.invites.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Job(result string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(result).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) PoolSize(n int) {
	if m == nil {
		return
	}
	m.poolSize.Set(float64(n))
}

func (m *Metrics) Sweep(pruned int) {
	if m == nil {
		return
	}
	m.healthSweeps.Inc()
	m.accountsPruned.Add(float64(pruned))
}
