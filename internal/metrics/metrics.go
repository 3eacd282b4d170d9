// Package metrics exposes the bridge's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	InboundWebhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frontbridge_inbound_webhooks_total",
		Help: "Inbound webhook calls by provider and result",
	}, []string{"provider", "result"})

	UpstreamSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frontbridge_upstream_sends_total",
		Help: "Outbound provider API calls by provider and result",
	}, []string{"provider", "result"})

	RelaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontbridge_relays_total",
		Help: "Completed media relays",
	})

	RelayBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frontbridge_relay_bytes_total",
		Help: "Bytes written to the media store by relays",
	})

	RelayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "frontbridge_relay_duration_seconds",
		Help:    "Media relay duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
