package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	// Reservation engine
	reservationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_reservation_outcomes_total",
			Help: "Seat reservation engine results by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	casConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seat_cas_conflicts_total",
			Help: "Compare-and-set attempts on available seats that lost a race.",
		},
	)
	casAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seat_cas_attempts",
			Help:    "Attempts needed per seat reservation operation.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 12, 16},
		},
	)
	invariantViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seat_invariant_violations_total",
			Help: "Detected seat inventory invariant violations.",
		},
	)

	// Bookings
	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Committed booking lifecycle changes by operation.",
		},
		[]string{"operation"},
	)

	// Kafka
	kafkaMessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_messages_sent_total",
			Help: "Total number of Kafka messages successfully sent.",
		},
	)
	kafkaMessagesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_messages_processed_total",
			Help: "Total number of Kafka messages successfully processed.",
		},
	)
	kafkaErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_errors_total",
			Help: "Total number of Kafka-related errors.",
		},
		[]string{"component", "operation"},
	)

	// Cache
	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Flight cache lookups and refills by result.",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,

			reservationOutcomes,
			casConflicts,
			casAttempts,
			invariantViolations,

			bookingTransitions,

			kafkaMessagesSent,
			kafkaMessagesProcessed,
			kafkaErrors,

			cacheRequests,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// --- HTTP ---
func ObserveHTTPRequest(method, route, code string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, code).Inc()
	httpDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// --- Reservation ---
func ObserveReservation(operation, outcome string, attempts int) {
	reservationOutcomes.WithLabelValues(operation, outcome).Inc()
	if attempts > 0 {
		casAttempts.Observe(float64(attempts))
	}
}
func IncCASConflict()                { casConflicts.Inc() }
func IncInvariantViolation()         { invariantViolations.Inc() }
func IncBookingTransition(op string) { bookingTransitions.WithLabelValues(op).Inc() }

// --- Kafka ---
func IncKafkaSent()      { kafkaMessagesSent.Inc() }
func IncKafkaProcessed() { kafkaMessagesProcessed.Inc() }
func IncKafkaError(component, operation string) {
	kafkaErrors.WithLabelValues(component, operation).Inc()
}

// --- Cache ---
func IncCacheHit()  { cacheRequests.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheRequests.WithLabelValues("miss").Inc() }

// IncCacheStale counts refills dropped because the listing was invalidated meanwhile.
func IncCacheStale() { cacheRequests.WithLabelValues("stale").Inc() }
