// Package metrics collects and exposes Prometheus metrics for the
// booking service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the booking service records through. It is
// satisfied by Collector; tests may substitute their own.
type Recorder interface {
	RecordBooking()
	RecordBookingConflict(reason string)
	RecordCancellation()
}

// Collector registers and updates the service's Prometheus metrics.
type Collector struct {
	bookingsTotal      prometheus.Counter
	bookingConflicts   *prometheus.CounterVec
	cancellationsTotal prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on the
// given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotbooking_bookings_total",
			Help: "Total number of successful slot bookings.",
		}),
		bookingConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotbooking_booking_conflicts_total",
			Help: "Total number of booking attempts rejected by a business-rule conflict.",
		}, []string{"reason"}),
		cancellationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotbooking_cancellations_total",
			Help: "Total number of successful booking cancellations.",
		}),
	}
	reg.MustRegister(c.bookingsTotal, c.bookingConflicts, c.cancellationsTotal)
	return c
}

// RecordBooking counts a committed booking.
func (c *Collector) RecordBooking() { c.bookingsTotal.Inc() }

// RecordBookingConflict counts a rejected booking by conflict reason
// ("full", "duplicate", "no_booking").
func (c *Collector) RecordBookingConflict(reason string) {
	c.bookingConflicts.WithLabelValues(reason).Inc()
}

// RecordCancellation counts a committed cancellation.
func (c *Collector) RecordCancellation() { c.cancellationsTotal.Inc() }

// Handler returns the HTTP handler serving the default registry in the
// Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
