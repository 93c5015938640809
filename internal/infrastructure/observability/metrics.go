package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes recorded by the outbox processor.
const (
	OutcomeSent       = "sent"
	OutcomeRetry      = "retry"
	OutcomeDeadLetter = "dead_letter"
	OutcomeReleased   = "released"
	OutcomeClaimLost  = "claim_lost"
)

// Metrics holds all application metrics
type Metrics struct {
	// Outbox metrics
	NotificationsEnqueued *prometheus.CounterVec
	Deliveries            *prometheus.CounterVec
	DeliveryDuration      *prometheus.HistogramVec
	ClaimedBatchSize      prometheus.Histogram
	InFlightDeliveries    prometheus.Gauge
	DeadLetterPublishes   *prometheus.CounterVec

	// Chat metrics
	MessagesSent      prometheus.Counter
	BroadcastFailures prometheus.Counter
	ObserverFailures  *prometheus.CounterVec
	MentionsDetected  prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		NotificationsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_enqueued_total",
				Help:      "Total number of notifications enqueued by template",
			},
			[]string{"template"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_deliveries_total",
				Help:      "Total number of delivery attempts by template and outcome",
			},
			[]string{"template", "outcome"},
		),
		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_delivery_duration_seconds",
				Help:      "Render and send duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"template", "outcome"},
		),
		ClaimedBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "outbox_claimed_batch_size",
				Help:      "Number of records claimed per poll",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
		InFlightDeliveries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outbox_in_flight_deliveries",
				Help:      "Number of records currently being delivered",
			},
		),
		DeadLetterPublishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_letter_publishes_total",
				Help:      "Dead-lettered records published to the DLQ stream",
			},
			[]string{"status"},
		),
		MessagesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_messages_sent_total",
				Help:      "Total number of chat messages sent",
			},
		),
		BroadcastFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_broadcast_failures_total",
				Help:      "Stored chat messages whose broadcast failed",
			},
		),
		ObserverFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_observer_failures_total",
				Help:      "Total number of failed post-send observer invocations",
			},
			[]string{"observer"},
		),
		MentionsDetected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_mentions_detected_total",
				Help:      "Mentions that resolved to a notifiable user",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.NotificationsEnqueued,
		m.Deliveries,
		m.DeliveryDuration,
		m.ClaimedBatchSize,
		m.InFlightDeliveries,
		m.DeadLetterPublishes,
		m.MessagesSent,
		m.BroadcastFailures,
		m.ObserverFailures,
		m.MentionsDetected,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
	)

	return m
}
