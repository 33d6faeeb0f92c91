// Package observability provides the Prometheus metrics of an ETL run.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flight_weather_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RowsRead    *prometheus.CounterVec // labels: dataset={weather,flights,airports}
	RowsDropped *prometheus.CounterVec // labels: dataset, reason
	RowsWritten *prometheus.CounterVec // labels: table={weather,flights,merged}

	StageDuration   *prometheus.HistogramVec // labels: stage
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Congestion scoring.
	SelectedWindow prometheus.Gauge

	// Join.
	UnmatchedFlights prometheus.Counter

	TimezoneCache *prometheus.CounterVec // labels: result={hit,miss}
	SinkErrors    *prometheus.CounterVec // labels: sink={kafka,postgres}
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Raw rows read by dataset.",
		}, []string{"dataset"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped during cleanup by dataset and reason.",
		}, []string{"dataset", "reason"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written to output tables.",
		}, []string{"table"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that committed its outputs.",
		}),
		SelectedWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "congestion_window",
			Help:      "Rolling window size selected for the congestion score.",
		}),
		UnmatchedFlights: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_flights_total",
			Help:      "Flights with no weather observation inside the join tolerance.",
		}),
		TimezoneCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timezone_cache_total",
			Help:      "Timezone lookups by cache result.",
		}, []string{"result"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed deliveries to optional sinks.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsRead,
		m.RowsDropped,
		m.RowsWritten,
		m.StageDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.SelectedWindow,
		m.UnmatchedFlights,
		m.TimezoneCache,
		m.SinkErrors,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsWithRegistry creates metrics registered with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for node_exporter's textfile collector. The file is
// replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
