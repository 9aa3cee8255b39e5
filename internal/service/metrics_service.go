package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// workflow core and the HTTP layer in front of it.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	approvals     *prometheus.CounterVec
	compensations *prometheus.CounterVec
	sponsorships  prometheus.Counter
	payments      prometheus.Counter
	deliveries    *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
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

	approvals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "case_approvals_total",
		Help: "Approval saga outcomes",
	}, []string{"outcome"})

	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_compensations_total",
		Help: "Saga compensation runs by result",
	}, []string{"result"})

	sponsorships := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sponsorships_created_total",
		Help: "Sponsorships successfully created",
	})

	payments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Payment transactions recorded",
	})

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_deliveries_total",
		Help: "Notification delivery attempts by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, approvals, compensations, sponsorships, payments, deliveries, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		approvals:       approvals,
		compensations:   compensations,
		sponsorships:    sponsorships,
		payments:        payments,
		deliveries:      deliveries,
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

// RecordApproval tracks one approval saga outcome: "approved",
// "rejected", "failed" or "compensation_failed".
func (m *MetricsService) RecordApproval(outcome string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(outcome).Inc()
}

// RecordCompensation tracks a compensation run.
func (m *MetricsService) RecordCompensation(succeeded bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !succeeded {
		result = "failed"
	}
	m.compensations.WithLabelValues(result).Inc()
}

// RecordSponsorship counts a created sponsorship.
func (m *MetricsService) RecordSponsorship() {
	if m == nil {
		return
	}
	m.sponsorships.Inc()
}

// RecordPayment counts a recorded payment transaction.
func (m *MetricsService) RecordPayment() {
	if m == nil {
		return
	}
	m.payments.Inc()
}

// RecordDelivery tracks a notification delivery attempt.
func (m *MetricsService) RecordDelivery(succeeded bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !succeeded {
		result = "failed"
	}
	m.deliveries.WithLabelValues(result).Inc()
}
