package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trainlink-org/shared-lib/internal/loco"
)

const namespace = "trainlink"

// Registry change labels.
const (
	ChangeAdded   = "added"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Transport labels for throttle commands.
const (
	TransportHTTP      = "http"
	TransportMQTT      = "mqtt"
	TransportWebSocket = "websocket"
)

// Counter is the part of loco.Registry the loco gauge reads.
type Counter interface {
	Len() int
}

// Metrics holds the Prometheus collectors for one TrainLink instance.
//
// Collectors live on a private registry so tests and multiple instances do
// not collide on the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	changes      *prometheus.CounterVec
	commands     *prometheus.CounterVec
	listeners    prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them. locos backs the
// trainlink_locos gauge and is read at scrape time.
func New(locos Counter) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_changes_total",
			Help:      "Loco registry changes by kind.",
		}, []string{"change"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_commands_total",
			Help:      "Throttle commands applied, by transport and command kind.",
		}, []string{"transport", "kind"}),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttle_listeners",
			Help:      "Registered throttle listeners.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locos",
			Help:      "Locos held in the registry.",
		}, func() float64 { return float64(locos.Len()) }),
		m.changes,
		m.commands,
		m.listeners,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the Prometheus registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// LocoAdded implements loco.Observer.
func (m *Metrics) LocoAdded(*loco.Loco) {
	m.changes.WithLabelValues(ChangeAdded).Inc()
}

// LocoUpdated implements loco.Observer.
func (m *Metrics) LocoUpdated(_, _ *loco.Loco) {
	m.changes.WithLabelValues(ChangeUpdated).Inc()
}

// LocoDeleted implements loco.Observer.
func (m *Metrics) LocoDeleted(*loco.Loco) {
	m.changes.WithLabelValues(ChangeDeleted).Inc()
}

// CommandApplied counts one throttle command (speed, direction, function)
// received over transport.
func (m *Metrics) CommandApplied(transport, kind string) {
	m.commands.WithLabelValues(transport, kind).Inc()
}

// SetListeners records the current throttle listener count.
func (m *Metrics) SetListeners(n int) {
	m.listeners.Set(float64(n))
}

// ObserveHTTP records one completed HTTP request.
func (m *Metrics) ObserveHTTP(method string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
