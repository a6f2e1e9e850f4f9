package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the retrieval surface.
type Metrics struct {
	retrievalDuration prometheus.Histogram
	retrievalTotal    *prometheus.CounterVec
	ingestedChunks    prometheus.Counter
}

// NewMetrics registers the instruments on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry to
// avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		retrievalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrieval_duration_seconds",
			Help:    "End-to-end latency of retrieval calls.",
			Buckets: prometheus.DefBuckets,
		}),
		retrievalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "retrieval_requests_total",
			Help: "Retrieval calls by outcome.",
		}, []string{"outcome"}),
		ingestedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingested_chunks_total",
			Help: "Chunks written to the store.",
		}),
	}
}

func (m *Metrics) ObserveRetrieval(elapsed time.Duration, err error) {
	m.retrievalDuration.Observe(elapsed.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.retrievalTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CountIngestedChunks(n int) {
	m.ingestedChunks.Add(float64(n))
}
