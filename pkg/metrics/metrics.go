package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Webhook ingestion metrics
	WebhooksReceived *prometheus.CounterVec

	// Reconciliation metrics
	OutcomesApplied  *prometheus.CounterVec
	ReconcileLatency prometheus.Histogram
	SessionsPolled   prometheus.Counter
	SessionsExpired  prometheus.Counter

	// Gateway client metrics
	GatewayRequests *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		WebhooksReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhooks_received_total",
			Help:      "Total number of gateway webhooks received, by result",
		}, []string{"result"}),

		OutcomesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_outcomes_total",
			Help:      "Payment outcomes handed to the reconciler, by outcome and result",
		}, []string{"outcome", "result"}),
		ReconcileLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent applying a payment outcome",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		SessionsPolled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_polled_total",
			Help:      "Pending payment sessions polled against the gateway",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "appointments_expired_total",
			Help:      "Appointments cancelled by the expiry sweep",
		}),

		GatewayRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gateway_requests_total",
			Help:      "Total number of payment gateway calls",
		}, []string{"operation", "status"}),
		GatewayLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of payment gateway calls",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),

		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
