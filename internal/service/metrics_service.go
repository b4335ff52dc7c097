package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the intake/sweeper pipelines.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	intakeTotal     *prometheus.CounterVec
	oracleCalls     *prometheus.CounterVec
	oracleLatency   prometheus.Observer
	escalations     prometheus.Counter
	sweepDuration   prometheus.Observer
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	intakeTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "issue_intake_total",
		Help: "Issue submissions by intake outcome",
	}, []string{"outcome"})

	oracleCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duplicate_oracle_calls_total",
		Help: "Duplicate oracle invocations by result",
	}, []string{"result"})

	oracleLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "duplicate_oracle_latency_seconds",
		Help:    "Latency of duplicate oracle calls",
		Buckets: prometheus.DefBuckets,
	})

	escalations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sla_escalations_total",
		Help: "Issues escalated by the SLA sweeper",
	})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sla_sweep_duration_seconds",
		Help:    "Duration of full sweeper passes",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, intakeTotal, oracleCalls, oracleLatency, escalations, sweepDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		intakeTotal:     intakeTotal,
		oracleCalls:     oracleCalls,
		oracleLatency:   oracleLatency,
		escalations:     escalations,
		sweepDuration:   sweepDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordIntake counts an intake outcome ("created" or "merged").
func (m *MetricsService) RecordIntake(outcome string) {
	if m == nil {
		return
	}
	m.intakeTotal.WithLabelValues(outcome).Inc()
}

// RecordOracleCall counts an oracle invocation by result
// ("duplicate", "distinct" or "error") and records its latency.
func (m *MetricsService) RecordOracleCall(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(result).Inc()
	m.oracleLatency.Observe(duration.Seconds())
}

// RecordEscalations adds swept issues to the escalation counter.
func (m *MetricsService) RecordEscalations(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.escalations.Add(float64(count))
}

// ObserveSweep records the duration of one full sweeper pass.
func (m *MetricsService) ObserveSweep(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}
