package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ConversationsCreated prometheus.Counter
	MessagesAppended     prometheus.Counter
	PublishFailures      prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the service counters on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ConversationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dm_conversations_created_total",
			Help: "Conversations created on first contact between two users.",
		}),
		MessagesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dm_messages_appended_total",
			Help: "Messages durably appended to a conversation.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dm_event_publish_failures_total",
			Help: "Message events the broker did not accept.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.ConversationsCreated, m.MessagesAppended, m.PublishFailures)
	return m
}

// Handler returns an http.Handler for Prometheus scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
