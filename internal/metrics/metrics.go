// Package metrics exposes the server's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors shared by the hub and session layer.
type Metrics struct {
	registry *prometheus.Registry

	ConnectedClients prometheus.Gauge
	FramesReceived   *prometheus.CounterVec
	BroadcastsTotal  prometheus.Counter
	DroppedSends     prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stepsync_connected_clients",
			Help: "Number of currently connected clients",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stepsync_frames_received_total",
			Help: "Inbound command frames by type",
		}, []string{"type"}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stepsync_broadcasts_total",
			Help: "Messages fanned out to all clients",
		}),
		DroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stepsync_dropped_sends_total",
			Help: "Per-client sends dropped because the client queue was full or closed",
		}),
	}
	m.registry.MustRegister(m.ConnectedClients, m.FramesReceived, m.BroadcastsTotal, m.DroppedSends)
	return m
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
