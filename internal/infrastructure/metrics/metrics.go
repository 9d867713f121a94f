package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the gateway and feed instruments. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	Connections          prometheus.Gauge
	MessagesSent         *prometheus.CounterVec
	EventsDropped        *prometheus.CounterVec
	NotificationsCreated *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Collectors {
	c := &Collectors{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Authenticated websocket connections currently registered.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Messages appended to chat sessions.",
		}, []string{"kind"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_events_dropped_total",
			Help: "Live events dropped because the recipient was offline or its queue was full.",
		}, []string{"event"}),
		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_notifications_created_total",
			Help: "Notifications persisted.",
		}, []string{"type"}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.Connections,
		c.MessagesSent,
		c.EventsDropped,
		c.NotificationsCreated,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collectors) ConnectionOpened() {
	if c == nil {
		return
	}
	c.Connections.Inc()
}

func (c *Collectors) ConnectionClosed() {
	if c == nil {
		return
	}
	c.Connections.Dec()
}

func (c *Collectors) MessageSent(kind string) {
	if c == nil {
		return
	}
	c.MessagesSent.WithLabelValues(kind).Inc()
}

func (c *Collectors) EventDropped(event string) {
	if c == nil {
		return
	}
	c.EventsDropped.WithLabelValues(event).Inc()
}

func (c *Collectors) NotificationCreated(notificationType string) {
	if c == nil {
		return
	}
	c.NotificationsCreated.WithLabelValues(notificationType).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
