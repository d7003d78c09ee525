package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	apiRequestsTotal       *prometheus.CounterVec
	apiLatencySeconds      *prometheus.HistogramVec
	apiErrorsTotal         *prometheus.CounterVec
	submissionsTotal       *prometheus.CounterVec
	attemptDenialsTotal    *prometheus.CounterVec
	gradingsTotal          *prometheus.CounterVec
	notificationsTotal     *prometheus.CounterVec
	notificationsDelivered *prometheus.CounterVec
	sseClients             prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursework_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coursework_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursework_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Submission attempts by assignment kind and outcome.",
		}, []string{"kind", "outcome"})

		attemptDenialsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attempt_denials_total",
			Help: "Submission attempts rejected by the attempt policy.",
		}, []string{"reason"})

		gradingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "manual_gradings_total",
			Help: "Manual grading operations by outcome.",
		}, []string{"outcome"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notification events dispatched to the event bus.",
		}, []string{"type", "status"})

		notificationsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Inbox notifications written or relayed to live subscribers.",
		}, []string{"type"})

		sseClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_sse_clients",
			Help: "Number of connected notification stream clients.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			submissionsTotal,
			attemptDenialsTotal,
			gradingsTotal,
			notificationsTotal,
			notificationsDelivered,
			sseClients,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// Submissions counts submit calls by kind and outcome.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// AttemptDenials counts policy denials by reason.
func AttemptDenials() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptDenialsTotal
}

// Gradings counts manual grading calls by outcome.
func Gradings() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingsTotal
}

// NotificationsDispatched counts events handed to the bus.
func NotificationsDispatched() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// NotificationsDelivered counts inbox notifications by type.
func NotificationsDelivered() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsDelivered
}

// SSEClientsActive tracks live notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClients
}
