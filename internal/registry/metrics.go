package registry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors updated by a Registry.
type Metrics struct {
	Rooms          prometheus.Gauge
	Members        prometheus.Gauge
	Messages       prometheus.Counter
	JoinRejections *prometheus.CounterVec
}

// NewMetrics creates the registry collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "rooms",
			Help:      "Number of rooms currently in the registry.",
		}),
		Members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "members",
			Help:      "Number of room memberships across all rooms.",
		}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "messages_total",
			Help:      "Chat messages appended to room logs.",
		}),
		JoinRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "join_rejections_total",
			Help:      "Join requests rejected, by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(m.Rooms, m.Members, m.Messages, m.JoinRejections)
	}
	return m
}

func (m *Metrics) rejectJoin(err error) {
	reason := "other"
	switch err {
	case ErrMissingField:
		reason = "missing_field"
	case ErrUsernameTaken:
		reason = "username_taken"
	}
	m.JoinRejections.WithLabelValues(reason).Inc()
}
