package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveBooking("book", "booked")
	m.ObserveSlotSearch("tomorrow", 0.02)
	m.ObserveCalendarPush("create", "synced")
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("book", "booked")
	m.ObserveSlotSearch("today", 0.1)
	m.ObserveCalendarPush("cancel", "failed")
}
