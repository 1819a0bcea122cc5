package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	classificationsTotal *prometheus.CounterVec
	confidence           *prometheus.HistogramVec
	casesCreatedTotal    *prometheus.CounterVec
	validationsTotal     *prometheus.CounterVec
	validationScore      *prometheus.HistogramVec
	associationsTotal    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tce",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	classificationsTotal := newClassificationCounter()
	confidence := newConfidenceHistogram()
	casesCreatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "cases",
			Name:      "created_total",
			Help:      "Total case files created by aggregation, by compliance state.",
		},
		[]string{"service", "state"},
	)
	validationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "cases",
			Name:      "validations_total",
			Help:      "Total consistency validations by verdict.",
		},
		[]string{"service", "verdict"},
	)
	validationScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "cases",
			Name:      "validation_score",
			Help:      "Distribution of consistency scores.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"service"},
	)
	associationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "associations",
			Name:      "total",
			Help:      "Total association attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		classificationsTotal,
		confidence,
		casesCreatedTotal,
		validationsTotal,
		validationScore,
		associationsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		classificationsTotal: classificationsTotal,
		confidence:           confidence,
		casesCreatedTotal:    casesCreatedTotal,
		validationsTotal:     validationsTotal,
		validationScore:      validationScore,
		associationsTotal:    associationsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses ids so label cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case path == "/v1/documents/analyze", path == "/v1/cases/aggregate", path == "/v1/cases/export.xlsx":
		return path
	case strings.HasPrefix(path, "/v1/documents/") && strings.HasSuffix(path, "/suggestions"):
		return "/v1/documents/{document_id}/suggestions"
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/submissions/"):
		return "/v1/submissions/{submission_id}"
	case strings.HasPrefix(path, "/v1/cases/") && strings.HasSuffix(path, "/validate"):
		return "/v1/cases/{case_id}/validate"
	case strings.HasPrefix(path, "/v1/cases/") && strings.HasSuffix(path, "/associations"):
		return "/v1/cases/{case_id}/associations"
	case strings.HasPrefix(path, "/v1/cases/"):
		return "/v1/cases/{case_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordClassification(service, kind string, confidence int) {
	recordClassification(m.classificationsTotal, m.confidence, service, kind, confidence)
}

func (m *HTTPServerMetrics) RecordCasesCreated(service string, states []string) {
	for _, state := range states {
		if state == "" {
			state = "unknown"
		}
		m.casesCreatedTotal.WithLabelValues(service, state).Inc()
	}
}

func (m *HTTPServerMetrics) RecordValidation(service, verdict string, score int) {
	if verdict == "" {
		verdict = "unknown"
	}
	m.validationsTotal.WithLabelValues(service, verdict).Inc()
	m.validationScore.WithLabelValues(service).Observe(float64(score))
}

func (m *HTTPServerMetrics) RecordAssociation(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.associationsTotal.WithLabelValues(service, outcome).Inc()
}

func newClassificationCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "engine",
			Name:      "classifications_total",
			Help:      "Total analyzed documents by detected kind.",
		},
		[]string{"service", "kind"},
	)
}

func newConfidenceHistogram() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "engine",
			Name:      "classification_confidence",
			Help:      "Distribution of classification confidence.",
			Buckets:   []float64{0, 20, 40, 60, 80, 95, 100},
		},
		[]string{"service"},
	)
}

func recordClassification(total *prometheus.CounterVec, hist *prometheus.HistogramVec, service, kind string, confidence int) {
	if kind == "" {
		kind = "unknown"
	}
	total.WithLabelValues(service, kind).Inc()
	hist.WithLabelValues(service).Observe(float64(confidence))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
