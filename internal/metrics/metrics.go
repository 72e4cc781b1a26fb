package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend client
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reading_backend_request_duration_seconds",
			Help:    "Latency of calls to the recommendation backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	BackendBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reading_backend_breaker_state",
			Help: "Circuit breaker state for the backend client (0 closed, 1 half-open, 2 open)",
		},
	)

	// Questionnaire
	QuestionnaireSessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reading_questionnaire_sessions_started_total",
			Help: "Questionnaire sessions created, including restarts",
		},
	)

	QuestionnaireSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reading_questionnaire_submissions_total",
			Help: "Questionnaire submit attempts by outcome",
		},
		[]string{"outcome"},
	)

	QuestionnaireSDPenalty = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reading_questionnaire_sd_penalty",
			Help:    "Social desirability penalty applied to submitted questionnaires",
			Buckets: []float64{0, 0.02, 0.05, 0.09, 0.12, 0.15, 0.18},
		},
	)

	// HTTP surface
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reading_http_request_duration_seconds",
			Help:    "Latency of gateway HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reading_ws_connections",
			Help: "Open WebSocket subscriptions",
		},
	)
)

// Submission outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeRejected   = "rejected"
	OutcomeBackendErr = "backend_error"
	OutcomeConflict   = "conflict"
)

// RecordBackendRequest observes one backend call. status 0 means a transport failure.
func RecordBackendRequest(endpoint string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	BackendRequestDuration.WithLabelValues(endpoint, label).Observe(d.Seconds())
}

func RecordHTTPRequest(route, method string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

func RecordSubmission(outcome string) {
	QuestionnaireSubmissions.WithLabelValues(outcome).Inc()
}
