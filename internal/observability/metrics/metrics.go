package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the scheduling flows. All
// observe methods tolerate a nil receiver so callers can run without metrics.
type BookingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	slotSearchSeconds *prometheus.HistogramVec
	calendarPushTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking state machine operations by outcome",
		}, []string{"operation", "outcome"}),
		slotSearchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Subsystem: "scheduling",
			Name:      "slot_search_seconds",
			Help:      "Latency of availability searches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"preference"}),
		calendarPushTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "scheduling",
			Name:      "calendar_push_total",
			Help:      "External calendar pushes by action and result",
		}, []string{"action", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.slotSearchSeconds, m.calendarPushTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotSearch(preference string, seconds float64) {
	if m == nil {
		return
	}
	m.slotSearchSeconds.WithLabelValues(preference).Observe(seconds)
}

func (m *BookingMetrics) ObserveCalendarPush(action, result string) {
	if m == nil {
		return
	}
	m.calendarPushTotal.WithLabelValues(action, result).Inc()
}
