// Package metrics holds the Prometheus collectors for auth outcomes and HTTP
// traffic. Call Register once at startup.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for AuthOperations.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidArgument    = "invalid_argument"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeMissingToken       = "missing_token"
	OutcomeForbidden          = "forbidden"
	OutcomeConflict           = "conflict"
	OutcomeThrottled          = "throttled"
	OutcomeError              = "error"
)

var AuthOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "account_auth_operations_total",
		Help: "Auth operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

var KDFDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "account_kdf_duration_seconds",
		Help:    "Password derivation time including the wait for a worker",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
)

var HTTPRequests = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "account_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(AuthOperations, KDFDuration, HTTPRequests)
}

func RecordAuth(operation, outcome string) {
	AuthOperations.WithLabelValues(operation, outcome).Inc()
}

func ObserveKDF(d time.Duration) {
	KDFDuration.Observe(d.Seconds())
}
