package server

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics holds the connection-level collectors updated by a Hub.
type HubMetrics struct {
	Connections prometheus.Gauge
	Dropped     prometheus.Counter
}

// NewHubMetrics creates the hub collectors and registers them with reg when
// reg is not nil.
func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "connections",
			Help:      "Number of live WebSocket connections.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "dropped_clients_total",
			Help:      "Clients disconnected because their send buffer was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.Dropped)
	}
	return m
}
