// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "huddle",
		Name:      "connections_active",
		Help:      "Currently open client connections.",
	})

	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "huddle",
		Name:      "events_published_total",
		Help:      "Room events fanned out, by event type.",
	}, []string{"type"})

	ConnectionsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "huddle",
		Name:      "connections_dropped_total",
		Help:      "Connections force-dropped on outbound queue overflow.",
	})

	PresenceExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "huddle",
		Name:      "presence_expired_total",
		Help:      "Presence entries expired by the inactivity sweeper.",
	})

	MessagesPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "huddle",
		Name:      "messages_persisted_total",
		Help:      "Messages appended to the durable log.",
	})

	FirehoseDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "huddle",
		Name:      "firehose_dropped_total",
		Help:      "Events dropped from the Kafka firehose buffer.",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		EventsPublished,
		ConnectionsDropped,
		PresenceExpired,
		MessagesPersisted,
		FirehoseDropped,
	)
}
