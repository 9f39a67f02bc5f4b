package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

// RetrievalMetrics implements ports.RetrievalObserver.
type RetrievalMetrics struct {
	service string

	requestsTotal       *prometheus.CounterVec
	duration            *prometheus.HistogramVec
	results             *prometheus.HistogramVec
	sourceFailuresTotal *prometheus.CounterVec
	degradedTotal       *prometheus.CounterVec
	candidates          *prometheus.HistogramVec
	breakerState        *prometheus.GaugeVec
}

func NewRetrievalMetrics(service string, reg prometheus.Registerer) *RetrievalMetrics {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Retrieve and reweight calls by status.",
		},
		[]string{"service", "operation", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieve and reweight duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"service", "operation"},
	)
	results := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Documents returned per successful call.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "operation"},
	)
	sourceFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "source_failures_total",
			Help:      "Candidate source calls that failed or timed out.",
		},
		[]string{"service", "source"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Retrievals served without the named source.",
		},
		[]string{"service", "source"},
	)
	candidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "source_candidates",
			Help:      "Valid candidates returned per source call.",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 50, 100},
		},
		[]string{"service", "source"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	reg.MustRegister(requestsTotal, duration, results, sourceFailuresTotal, degradedTotal, candidates, breakerState)

	return &RetrievalMetrics{
		service:             service,
		requestsTotal:       requestsTotal,
		duration:            duration,
		results:             results,
		sourceFailuresTotal: sourceFailuresTotal,
		degradedTotal:       degradedTotal,
		candidates:          candidates,
		breakerState:        breakerState,
	}
}

func (m *RetrievalMetrics) ObserveRetrieval(operation, status string, numResults int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.requestsTotal.WithLabelValues(m.service, operation, status).Inc()
	m.duration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
	if status == "ok" {
		m.results.WithLabelValues(m.service, operation).Observe(float64(numResults))
	}
}

func (m *RetrievalMetrics) ObserveSourceFailure(source domain.SourceName) {
	m.sourceFailuresTotal.WithLabelValues(m.service, string(source)).Inc()
}

func (m *RetrievalMetrics) ObserveDegraded(source domain.SourceName) {
	m.degradedTotal.WithLabelValues(m.service, string(source)).Inc()
}

func (m *RetrievalMetrics) ObserveCandidates(source domain.SourceName, count int) {
	m.candidates.WithLabelValues(m.service, string(source)).Observe(float64(count))
}

// ObserveBreakerState matches resilience.Config.OnStateChange.
func (m *RetrievalMetrics) ObserveBreakerState(operation, _, to string) {
	value := 0.0
	switch to {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
