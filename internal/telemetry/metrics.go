package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayMetrics are the prometheus collectors of the rendezvous relay.
type RelayMetrics struct {
	ConnectedPeers prometheus.Gauge
	FramesRouted   *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	f := promauto.With(reg)

	return &RelayMetrics{
		ConnectedPeers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "learnengpol",
			Subsystem: "relay",
			Name:      "connected_peers",
			Help:      "Number of peers currently holding an identity.",
		}),
		FramesRouted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnengpol",
			Subsystem: "relay",
			Name:      "frames_routed_total",
			Help:      "Frames delivered between peers, by kind.",
		}, []string{"kind"}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnengpol",
			Subsystem: "relay",
			Name:      "frames_dropped_total",
			Help:      "Frames that could not be delivered, by reason.",
		}, []string{"reason"}),
	}
}
