// Package metrics exports inotify session activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giannitedesco/minotaur/pkg/inotify"
)

const namespace = "minotaur"

// Metrics implements inotify.Observer on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsOpen  prometheus.Gauge
	watchesLive   prometheus.Gauge
	registrations *prometheus.CounterVec
	cancellations prometheus.Counter
	expirations   prometheus.Counter
	failures      *prometheus.CounterVec
	events        *prometheus.CounterVec
	overflows     prometheus.Counter
}

var _ inotify.Observer = (*Metrics)(nil)

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inotify",
			Name:      "sessions_open",
			Help:      "Number of open inotify sessions.",
		}),
		watchesLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inotify",
			Name:      "watches_live",
			Help:      "Number of watch descriptors currently held.",
		}),
		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inotify",
			Name:      "registrations_total",
			Help:      "Successful registrations, by whether they added or updated a watch.",
		}, []string{"result"}),
		cancellations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inotify",
			Name:      "cancellations_total",
			Help:      "Watches removed by Cancel.",
		}),
		expirations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inotify",
			Name:      "expirations_total",
			Help:      "Watches the kernel removed on its own.",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inotify",
			Name:      "errors_total",
			Help:      "Failed operations, by operation and error code.",
		}, []string{"op", "code"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inotify",
			Name:      "events_total",
			Help:      "Delivered events, by category.",
		}, []string{"op"}),
		overflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inotify",
			Name:      "queue_overflows_total",
			Help:      "Times the kernel event queue overflowed.",
		}),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SessionOpened implements inotify.Observer.
func (m *Metrics) SessionOpened(uuid.UUID) {
	m.sessionsOpen.Inc()
}

// SessionClosed implements inotify.Observer.
func (m *Metrics) SessionClosed(_ uuid.UUID, released int) {
	m.sessionsOpen.Dec()
	m.watchesLive.Sub(float64(released))
}

// WatchRegistered implements inotify.Observer.
func (m *Metrics) WatchRegistered(_ inotify.Descriptor, _ inotify.Mask, existed bool) {
	if existed {
		m.registrations.WithLabelValues("updated").Inc()
		return
	}
	m.registrations.WithLabelValues("added").Inc()
	m.watchesLive.Inc()
}

// WatchCancelled implements inotify.Observer.
func (m *Metrics) WatchCancelled(inotify.Descriptor) {
	m.cancellations.Inc()
	m.watchesLive.Dec()
}

// WatchExpired implements inotify.Observer.
func (m *Metrics) WatchExpired(inotify.Descriptor) {
	m.expirations.Inc()
	m.watchesLive.Dec()
}

// OperationFailed implements inotify.Observer.
func (m *Metrics) OperationFailed(op string, code inotify.Code) {
	m.failures.WithLabelValues(op, string(code)).Inc()
}

// EventDelivered implements inotify.Observer.
func (m *Metrics) EventDelivered(ev inotify.Event) {
	if ev.Info.Has(inotify.QOverflow) {
		m.overflows.Inc()
	}
	for bit := inotify.Op(1); bit != 0 && bit <= inotify.OpAll; bit <<= 1 {
		if ev.Op.Has(bit) {
			m.events.WithLabelValues(bit.String()).Inc()
		}
	}
}
