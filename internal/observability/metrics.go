package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a retrieval run.
type Metrics struct {
	LegsRead        prometheus.Counter
	LegsRejected    prometheus.Counter
	RequestsPlanned prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Retrieval metrics.
	Retrievals        *prometheus.CounterVec // labels: sink={cds,kafka,stdout}, outcome={success,error}
	RetrievalDuration *prometheus.HistogramVec // labels: sink

	// CDS API metrics.
	CDSRequests    *prometheus.CounterVec   // labels: endpoint={submit,status,results,download}, outcome={success,error}
	CDSAPIDuration *prometheus.HistogramVec // labels: endpoint
	CDSBytes       prometheus.Counter
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.LegsRead,
		m.LegsRejected,
		m.RequestsPlanned,
		m.PipelineRunning,
		m.Retrievals,
		m.RetrievalDuration,
		m.CDSRequests,
		m.CDSAPIDuration,
		m.CDSBytes,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LegsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "g40",
			Name:      "legs_read_total",
			Help:      "Total legs read from the schedule.",
		}),
		LegsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "g40",
			Name:      "legs_rejected_total",
			Help:      "Total legs skipped because they failed validation.",
		}),
		RequestsPlanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "g40",
			Name:      "requests_planned_total",
			Help:      "Total month-chunk retrieval requests planned.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "g40",
			Name:      "pipeline_running",
			Help:      "1 while a retrieval run is active, 0 otherwise.",
		}),
		Retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "g40",
			Name:      "retrievals_total",
			Help:      "Retrieval requests handed to the sink, by outcome.",
		}, []string{"sink", "outcome"}),
		RetrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "g40",
			Name:      "retrieval_duration_seconds",
			Help:      "Time for the sink to handle one retrieval request.",
			Buckets:   []float64{0.01, 0.1, 1, 10, 30, 60, 300, 900, 1800, 3600},
		}, []string{"sink"}),
		CDSRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "g40",
			Name:      "cds_requests_total",
			Help:      "Climate Data Store API calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		CDSAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "g40",
			Name:      "cds_api_duration_seconds",
			Help:      "Climate Data Store API call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120},
		}, []string{"endpoint"}),
		CDSBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "g40",
			Name:      "cds_downloaded_bytes_total",
			Help:      "Bytes of GRIB data downloaded from the Climate Data Store.",
		}),
	}
}
