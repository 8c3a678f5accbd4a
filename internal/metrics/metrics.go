// Package metrics exposes the realtime broker's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "boardsync"

// Collector implements the websocket hub's metrics hooks on top of Prometheus.
type Collector struct {
	connections    prometheus.Gauge
	boards         prometheus.Gauge
	messages       *prometheus.CounterVec
	handlerErrors  *prometheus.CounterVec
	malformed      prometheus.Counter
	deliveries     prometheus.Counter
	drops          prometheus.Counter
	relayPublished prometheus.Counter
	relayReceived  prometheus.Counter
	relayErrors    prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		boards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_boards",
			Help:      "Boards with at least one joined connection on this node.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Inbound envelopes dispatched, by type.",
		}, []string{"type"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_handler_errors_total",
			Help:      "Inbound envelopes answered with an error envelope, by type.",
		}, []string{"type"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_malformed_total",
			Help:      "Inbound frames dropped because they were not a valid envelope.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Frames queued to a connection by the broadcast engine.",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_drops_total",
			Help:      "Frames dropped because a connection was closed or its queue was full.",
		}),
		relayPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_published_total",
			Help:      "Broadcasts published to other nodes.",
		}),
		relayReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_received_total",
			Help:      "Broadcasts received from other nodes.",
		}),
		relayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_errors_total",
			Help:      "Relay frames that could not be published or decoded.",
		}),
	}

	reg.MustRegister(
		c.connections,
		c.boards,
		c.messages,
		c.handlerErrors,
		c.malformed,
		c.deliveries,
		c.drops,
		c.relayPublished,
		c.relayReceived,
		c.relayErrors,
	)

	return c
}

func (c *Collector) ConnectionOpened() { c.connections.Inc() }
func (c *Collector) ConnectionClosed() { c.connections.Dec() }

func (c *Collector) SetBoards(n int) { c.boards.Set(float64(n)) }

func (c *Collector) MessageHandled(kind string) { c.messages.WithLabelValues(kind).Inc() }
func (c *Collector) HandlerError(kind string)   { c.handlerErrors.WithLabelValues(kind).Inc() }
func (c *Collector) MessageMalformed()          { c.malformed.Inc() }

// Delivered records the outcome of one fan-out.
func (c *Collector) Delivered(sent, dropped int) {
	c.deliveries.Add(float64(sent))
	c.drops.Add(float64(dropped))
}

func (c *Collector) RelayPublished() { c.relayPublished.Inc() }
func (c *Collector) RelayReceived()  { c.relayReceived.Inc() }
func (c *Collector) RelayError()     { c.relayErrors.Inc() }

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
