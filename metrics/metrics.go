package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus gauges fed by the monitoring loop.
type Metrics struct {
	registry       *prometheus.Registry
	cpuPercent     prometheus.Gauge
	memoryPercent  prometheus.Gauge
	streamsTotal   prometheus.Gauge
	streamsHealthy prometheus.Gauge
	streamUp       *prometheus.GaugeVec
	streamErrors   *prometheus.GaugeVec
}

// New creates and registers the load test metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	cpuPercent := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loadtest_cpu_percent",
		Help: "Host CPU usage sampled by the monitoring loop",
	})
	memoryPercent := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loadtest_memory_percent",
		Help: "Host memory usage sampled by the monitoring loop",
	})
	streamsTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loadtest_streams",
		Help: "Number of publishers managed by the orchestrator",
	})
	streamsHealthy := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loadtest_streams_healthy",
		Help: "Number of publishers currently healthy",
	})
	streamUp := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loadtest_stream_up",
		Help: "Whether the named publisher is healthy (1) or not (0)",
	}, []string{"stream"})
	streamErrors := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loadtest_stream_errors",
		Help: "Encoder crashes observed for the named publisher",
	}, []string{"stream"})

	registry.MustRegister(
		cpuPercent,
		memoryPercent,
		streamsTotal,
		streamsHealthy,
		streamUp,
		streamErrors,
	)

	return &Metrics{
		registry:       registry,
		cpuPercent:     cpuPercent,
		memoryPercent:  memoryPercent,
		streamsTotal:   streamsTotal,
		streamsHealthy: streamsHealthy,
		streamUp:       streamUp,
		streamErrors:   streamErrors,
	}
}

// ObserveUsage records the latest host resource sample.
func (m *Metrics) ObserveUsage(cpuPercent, memoryPercent float64) {
	m.cpuPercent.Set(cpuPercent)
	m.memoryPercent.Set(memoryPercent)
}

// ObserveStream records the state of one publisher.
func (m *Metrics) ObserveStream(name string, up bool, errorCount int) {
	v := 0.0
	if up {
		v = 1.0
	}
	m.streamUp.WithLabelValues(name).Set(v)
	m.streamErrors.WithLabelValues(name).Set(float64(errorCount))
}

// SetStreamCounts records the managed and healthy publisher totals.
func (m *Metrics) SetStreamCounts(total, healthy int) {
	m.streamsTotal.Set(float64(total))
	m.streamsHealthy.Set(float64(healthy))
}

// Handler returns an http.Handler that serves the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
