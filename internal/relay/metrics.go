package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "squirrelay"

// metrics holds the Prometheus metrics exported by the relay loop.
type metrics struct {
	sessions        prometheus.Gauge
	rooms           prometheus.Gauge
	messagesTotal   *prometheus.CounterVec
	decodeErrors    prometheus.Counter
	handshakeErrors prometheus.Counter
	tickDuration    prometheus.Histogram
}

func newMetrics(registry prometheus.Registerer) *metrics {
	factory := promauto.With(registry)

	return &metrics{
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Number of connected sessions",
		}),
		rooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Number of live rooms, visible or not",
		}),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_messages_total",
			Help:      "Total number of decoded client messages",
		}, []string{"kind"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total number of datagrams dropped because they could not be decoded",
		}),
		handshakeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_failures_total",
			Help:      "Total number of peers disconnected for not completing the handshake",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent processing one relay tick",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .015, .025, .05, .1},
		}),
	}
}
