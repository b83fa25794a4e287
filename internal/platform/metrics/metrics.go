// Package metrics exposes Prometheus collectors for the scheduling service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics counts availability lookups, booking outcomes and rejected edits.
// A nil *SchedulingMetrics is valid and records nothing.
type SchedulingMetrics struct {
	availabilityTotal   *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
	bookingsTotal       *prometheus.CounterVec
	validationFailures  *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hms",
			Subsystem: "scheduling",
			Name:      "availability_queries_total",
			Help:      "Availability lookups by outcome",
		}, []string{"outcome"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hms",
			Subsystem: "scheduling",
			Name:      "availability_latency_seconds",
			Help:      "Latency of availability lookups including store reads",
			Buckets:   prometheus.DefBuckets,
		}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hms",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking confirmations by result",
		}, []string{"result"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hms",
			Subsystem: "scheduling",
			Name:      "validation_failures_total",
			Help:      "Rejected schedule, leave and booking requests",
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.availabilityTotal, m.availabilityLatency, m.bookingsTotal, m.validationFailures)
	return m
}

// ObserveAvailability records one lookup. outcome is "slots", "empty" or "leave".
func (m *SchedulingMetrics) ObserveAvailability(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(outcome).Inc()
	m.availabilityLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *SchedulingMetrics) ObserveValidationFailure(operation string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(operation).Inc()
}
