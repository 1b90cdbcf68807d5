// Package observability registers the reservation engine's prometheus metrics.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	bookingsCreatedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reservation_service",
		Subsystem: "engine",
		Name:      "bookings_created_total",
		Help:      "Number of bookings created, labeled by resulting status.",
	}, []string{"status"})

	cancellationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reservation_service",
		Subsystem: "engine",
		Name:      "cancellations_total",
		Help:      "Number of cancellations, labeled by whether the slot was backfilled.",
	}, []string{"backfilled"})

	promotionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reservation_service",
		Subsystem: "engine",
		Name:      "waitlist_promotions_total",
		Help:      "Number of waitlisted bookings promoted to confirmed.",
	})

	zeroCreditPromotionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reservation_service",
		Subsystem: "engine",
		Name:      "zero_credit_promotions_total",
		Help:      "Number of lenient promotions granted to members with no credits remaining.",
	})

	checkInAttemptsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reservation_service",
		Subsystem: "attendance",
		Name:      "checkin_attempts_total",
		Help:      "Number of check-in attempts, labeled by audit outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		bookingsCreatedCounter,
		cancellationsCounter,
		promotionsCounter,
		zeroCreditPromotionsCounter,
		checkInAttemptsCounter,
	)
}

// RecordBookingCreated counts a committed booking by its resulting status.
func RecordBookingCreated(status string) {
	bookingsCreatedCounter.WithLabelValues(status).Inc()
}

// RecordCancellation counts a committed cancellation.
func RecordCancellation(backfilled bool) {
	label := "no"
	if backfilled {
		label = "yes"
	}
	cancellationsCounter.WithLabelValues(label).Inc()
}

// RecordPromotion counts a waitlist promotion.
func RecordPromotion() {
	promotionsCounter.Inc()
}

// RecordZeroCreditPromotion counts a lenient promotion at zero credits.
func RecordZeroCreditPromotion() {
	zeroCreditPromotionsCounter.Inc()
}

// RecordCheckInAttempt counts one audit-logged check-in attempt.
func RecordCheckInAttempt(outcome string) {
	checkInAttemptsCounter.WithLabelValues(outcome).Inc()
}
