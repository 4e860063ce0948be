package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "ws_connections",
			Help:      "Number of open websocket connections on this instance",
		},
	)

	wsEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "ws_events_total",
			Help:      "Websocket events by name and direction",
		},
		[]string{"event", "direction"},
	)

	wsDroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "ws_dropped_frames_total",
			Help:      "Outbound frames dropped because a client send buffer was full",
		},
	)
)
