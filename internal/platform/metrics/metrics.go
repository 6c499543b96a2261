package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the signage manifest service.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	mutationsTotal    *prometheus.CounterVec
	signalsTotal      prometheus.Counter
	liveSubscribers   prometheus.Gauge
	playersRegistered prometheus.Gauge
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signage_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signage_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	mutationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_manifest_mutations_total",
		Help: "Successful manifest mutations by operation",
	}, []string{"op"})
	signalsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signage_change_signals_total",
		Help: "Change signals published to the live sync bus",
	})
	liveSubscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signage_live_subscribers",
		Help: "Displays currently subscribed to change signals",
	})
	playersRegistered := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signage_players_registered",
		Help: "Number of players in the registry",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		mutationsTotal,
		signalsTotal,
		liveSubscribers,
		playersRegistered,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		mutationsTotal:    mutationsTotal,
		signalsTotal:      signalsTotal,
		liveSubscribers:   liveSubscribers,
		playersRegistered: playersRegistered,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncMutation counts one successful manifest mutation of the given kind
// ("add", "remove", "reorder", "update_expiry", "delete_player").
func (m *Metrics) IncMutation(op string) {
	m.mutationsTotal.WithLabelValues(op).Inc()
}

// IncSignals counts a published change signal.
func (m *Metrics) IncSignals() {
	m.signalsTotal.Inc()
}

// SetLiveSubscribers sets the live subscribers gauge.
func (m *Metrics) SetLiveSubscribers(n int) {
	m.liveSubscribers.Set(float64(n))
}

// SetPlayers sets the registered players gauge.
func (m *Metrics) SetPlayers(n int) {
	m.playersRegistered.Set(float64(n))
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		inner.ServeHTTP(w, r)
	})
}
