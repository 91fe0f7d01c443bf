package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records operator login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_auth_attempts_total",
			Help: "Total number of operator authentication attempts",
		},
		[]string{"result"},
	)

	// Registrations counts issuance attempts by result (issued|duplicate|failed).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)

	// CodeCollisions counts regenerated codes after a unique-code conflict.
	CodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatepass_code_collisions_total",
			Help: "Number of generated codes that collided with an existing record",
		},
	)

	// Validations counts validation attempts by mode (redeem|inspect) and status.
	Validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_validations_total",
			Help: "Total number of code validation attempts",
		},
		[]string{"mode", "status"},
	)

	// Dispatches counts notification deliveries by result (sent|failed|timeout|disabled).
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_dispatches_total",
			Help: "Total number of ticket notification dispatches",
		},
		[]string{"result"},
	)

	// Attendees tracks stored attendees by state (used|unused).
	Attendees = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gatepass_attendees",
			Help: "Number of registered attendees",
		},
		[]string{"state"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatepass_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
