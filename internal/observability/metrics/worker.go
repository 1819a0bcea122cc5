package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal         *prometheus.CounterVec
	processDuration      *prometheus.HistogramVec
	processInFlight      prometheus.Gauge
	queueLag             *prometheus.HistogramVec
	duplicatesTotal      *prometheus.CounterVec
	classificationsTotal *prometheus.CounterVec
	confidence           *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "worker",
			Name:      "submission_process_total",
			Help:      "Total processed submissions by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "worker",
			Name:      "submission_process_duration_seconds",
			Help:      "Submission processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tce",
			Subsystem: "worker",
			Name:      "submission_process_in_flight",
			Help:      "Number of in-flight submission processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between submission upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	duplicatesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "worker",
			Name:      "duplicate_deliveries_total",
			Help:      "Submission events skipped because another delivery already claimed them.",
		},
		[]string{"service"},
	)
	classificationsTotal := newClassificationCounter()
	confidence := newConfidenceHistogram()

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, duplicatesTotal, classificationsTotal, confidence)

	return &WorkerMetrics{
		registry:             registry,
		processTotal:         processTotal,
		processDuration:      processDuration,
		processInFlight:      processInFlight,
		queueLag:             queueLag,
		duplicatesTotal:      duplicatesTotal,
		classificationsTotal: classificationsTotal,
		confidence:           confidence,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartSubmission() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishSubmission(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordDuplicate(service string) {
	m.duplicatesTotal.WithLabelValues(service).Inc()
}

func (m *WorkerMetrics) RecordClassification(service, kind string, confidence int) {
	recordClassification(m.classificationsTotal, m.confidence, service, kind, confidence)
}
