package horde

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects client side request and job statistics. A nil *Metrics records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	jobsCreated     prometheus.Counter
	jobsFinished    *prometheus.CounterVec
	polls           prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg, if reg is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Facilitator requests by method, endpoint and status code.",
		}, []string{"method", "endpoint", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "horde",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Facilitator request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		jobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "client",
			Name:      "jobs_created_total",
			Help:      "Jobs accepted by the facilitator.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "client",
			Name:      "jobs_finished_total",
			Help:      "Jobs observed reaching a terminal status.",
		}, []string{"status"}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "client",
			Name:      "job_polls_total",
			Help:      "Job status refreshes issued while waiting.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.requestDuration, m.jobsCreated, m.jobsFinished, m.polls} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(method, endpoint string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(took.Seconds())
}

func (m *Metrics) jobCreated() {
	if m == nil {
		return
	}
	m.jobsCreated.Inc()
}

func (m *Metrics) jobFinished(status Status) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) poll() {
	if m == nil {
		return
	}
	m.polls.Inc()
}
