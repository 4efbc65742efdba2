// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ftms",
		Name:      "active_connections",
		Help:      "Client connections currently served.",
	})

	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ftms",
		Name:      "requests_total",
		Help:      "Requests handled, by kind and response status.",
	}, []string{"kind", "status"})

	Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ftms",
		Name:      "booking_operations_total",
		Help:      "Booking engine operations, by operation and result.",
	}, []string{"operation", "result"})

	ChatCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ftms",
		Name:      "chat_completions_total",
		Help:      "Chat relay calls, by result.",
	}, []string{"result"})

	OpenHandles = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ftms",
		Name:      "store_handles_open",
		Help:      "Store handles held by connection workers.",
	})
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)
