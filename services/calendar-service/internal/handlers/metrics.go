package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	suggestWindows = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "slotbook",
		Subsystem: "calendar",
		Name:      "suggested_windows",
		Help:      "Number of free windows returned per suggestion request.",
		Buckets:   []float64{0, 1, 2, 3, 5, 10},
	})

	bookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotbook",
		Subsystem: "calendar",
		Name:      "bookings_total",
		Help:      "Booking attempts by outcome.",
	}, []string{"outcome"})

	ingestedIntervals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slotbook",
		Subsystem: "calendar",
		Name:      "busy_intervals_ingested_total",
		Help:      "Busy intervals accepted through /slots.",
	})
)
