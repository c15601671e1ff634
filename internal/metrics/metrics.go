// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts intake requests handled by the HTTP API.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// JobsLaunchedTotal counts jobs handed to a launcher.
	JobsLaunchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_launched_total",
			Help: "Total number of validation jobs launched.",
		},
		[]string{"kind"},
	)

	// JobOutcomesTotal counts jobs by terminal state (done/aborted).
	JobOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_outcomes_total",
			Help: "Total number of validation jobs by terminal state.",
		},
		[]string{"kind", "state"},
	)

	// JobsInFlight tracks launched jobs that have not reached a terminal state.
	JobsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_in_flight",
			Help: "Number of validation jobs currently running or waiting for a slot.",
		},
		[]string{"kind"},
	)

	// DeliveryAttemptsTotal counts individual HTTP attempts towards next services.
	DeliveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Total number of delivery attempts to next services.",
		},
		[]string{"result"},
	)

	// DeadLettersTotal counts envelopes handed to the dead-letter repository.
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letters_total",
			Help: "Total number of undeliverable envelopes parked for replay.",
		},
		[]string{"kind", "result"},
	)

	// ValidatorFailuresTotal counts jobs aborted by their validator.
	ValidatorFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_failures_total",
			Help: "Total number of jobs whose validator returned an error or panicked.",
		},
		[]string{"kind", "reason"},
	)
)
