package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level metrics, grounded on tcp-info's metrics package:
// promauto-registered gauges/counters, collected from anywhere in the
// server actors without threading a registry handle through them.
var (
	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slink_server_clients_connected",
		Help: "Number of currently connected SeedLink clients.",
	})

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slink_server_commands_total",
			Help: "Number of commands received, labeled by keyword.",
		},
		[]string{"command"},
	)

	DisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slink_server_disconnects_total",
			Help: "Number of client disconnects, labeled by reason.",
		},
		[]string{"reason"},
	)

	BytesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slink_server_bytes_sent_total",
		Help: "Total bytes written to clients.",
	})
)
