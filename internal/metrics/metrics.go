// Package metrics exposes engine counters to Prometheus.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "quickpanel"

// Metrics holds the engine's collectors.
type Metrics struct {
	Registry *prometheus.Registry

	sourceEvents *prometheus.CounterVec
	entries      *prometheus.GaugeVec
	viStarted    *prometheus.CounterVec
	viCompleted  *prometheus.CounterVec
	headsUp      *prometheus.CounterVec
	ledWrites    prometheus.Counter
	ledOn        prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry along
// with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		sourceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_events_total",
			Help:      "Notification source events received, by kind.",
		}, []string{"kind"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entries",
			Help:      "Active notifications, by category.",
		}, []string{"category"}),
		viStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vi_started_total",
			Help:      "Visual interactions started, by op.",
		}, []string{"op"}),
		viCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vi_completed_total",
			Help:      "Visual interactions completed, by op and outcome.",
		}, []string{"op", "outcome"}),
		headsUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "headsup_events_total",
			Help:      "Heads-up queue events, by kind.",
		}, []string{"event"}),
		ledWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "led_writes_total",
			Help:      "Hardware LED writes.",
		}),
		ledOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "led_on",
			Help:      "1 while the LED is lit.",
		}),
	}

	m.Registry.MustRegister(
		m.sourceEvents,
		m.entries,
		m.viStarted,
		m.viCompleted,
		m.headsUp,
		m.ledWrites,
		m.ledOn,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// SourceEvent counts an event from the notification source.
func (m *Metrics) SourceEvent(kind string) {
	if m == nil {
		return
	}
	m.sourceEvents.WithLabelValues(kind).Inc()
}

// SetEntries records the registry size for a category.
func (m *Metrics) SetEntries(category string, n int) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(category).Set(float64(n))
}

// VIStarted counts a started visual interaction.
func (m *Metrics) VIStarted(op string) {
	if m == nil {
		return
	}
	m.viStarted.WithLabelValues(op).Inc()
}

// VICompleted counts a completed visual interaction. outcome is "done",
// "interrupted" or "abandoned".
func (m *Metrics) VICompleted(op, outcome string) {
	if m == nil {
		return
	}
	m.viCompleted.WithLabelValues(op, outcome).Inc()
}

// HeadsUp counts a heads-up queue event.
func (m *Metrics) HeadsUp(event string) {
	if m == nil {
		return
	}
	m.headsUp.WithLabelValues(event).Inc()
}

// LEDApplied records a hardware LED write.
func (m *Metrics) LEDApplied(on bool) {
	if m == nil {
		return
	}
	m.ledWrites.Inc()
	if on {
		m.ledOn.Set(1)
	} else {
		m.ledOn.Set(0)
	}
}
