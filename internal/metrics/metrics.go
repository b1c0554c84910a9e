// internal/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldbooking",
			Name:      "booking_transitions_total",
			Help:      "Booking lifecycle transitions by outcome.",
		},
		[]string{"transition"},
	)

	couponReservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldbooking",
			Name:      "coupon_reservations_total",
			Help:      "Coupon redemption attempts by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldbooking",
			Name:      "http_requests_total",
			Help:      "HTTP requests by path and status.",
		},
		[]string{"path", "status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingTransitions, couponReservations, httpRequests)
	})
}

// IncBookingTransition counts a booking lifecycle transition
// ("created", "confirmed", "cancelled", "expired").
func IncBookingTransition(transition string) {
	bookingTransitions.WithLabelValues(transition).Inc()
}

// IncCouponReservation counts a redemption attempt ("granted" or "denied").
func IncCouponReservation(result string) {
	couponReservations.WithLabelValues(result).Inc()
}

// IncHTTP counts a completed HTTP request.
func IncHTTP(path, status string) {
	httpRequests.WithLabelValues(path, status).Inc()
}
