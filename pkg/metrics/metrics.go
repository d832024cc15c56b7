// Package metrics exposes per-node Prometheus collectors for the consensus core.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "benor"

// Metrics holds the collectors of one node. Every node gets its own registry so
// several nodes can live in one process. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	MessagesReceived *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	Broadcasts       *prometheus.CounterVec
	SendFailures     prometheus.Counter

	Round          prometheus.Gauge
	Decided        prometheus.Gauge
	DecidedValue   prometheus.Gauge
	BufferedRounds prometheus.Gauge
	Killed         prometheus.Gauge
}

// New creates the collectors labelled with the node index.
func New(nodeID int) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"node": strconv.Itoa(nodeID)}

	return &Metrics{
		registry: reg,
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "messages_received_total",
			Help:        "Round messages delivered to the node, by step",
			ConstLabels: labels,
		}, []string{"step"}),
		MessagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "messages_dropped_total",
			Help:        "Round messages acknowledged but ignored, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		Broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "broadcasts_total",
			Help:        "Broadcasts to all peers, by step",
			ConstLabels: labels,
		}, []string{"step"}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "send_failures_total",
			Help:        "Point-to-point deliveries that failed",
			ConstLabels: labels,
		}),
		Round: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "round",
			Help:        "Internal round counter",
			ConstLabels: labels,
		}),
		Decided: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "decided",
			Help:        "1 once the node has decided",
			ConstLabels: labels,
		}),
		DecidedValue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "decided_value",
			Help:        "Decided value, -1 while undecided",
			ConstLabels: labels,
		}),
		BufferedRounds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "buffered_rounds",
			Help:        "Rounds currently holding message buffers",
			ConstLabels: labels,
		}),
		Killed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "killed",
			Help:        "1 once the node was stopped",
			ConstLabels: labels,
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves this node's registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MessageReceived(step int) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(strconv.Itoa(step)).Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Broadcast(step int) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(strconv.Itoa(step)).Inc()
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.SendFailures.Inc()
}

func (m *Metrics) SetRound(round int) {
	if m == nil {
		return
	}
	m.Round.Set(float64(round))
}

func (m *Metrics) SetDecision(value int) {
	if m == nil {
		return
	}
	m.Decided.Set(1)
	m.DecidedValue.Set(float64(value))
}

func (m *Metrics) ResetDecision() {
	if m == nil {
		return
	}
	m.Decided.Set(0)
	m.DecidedValue.Set(-1)
}

func (m *Metrics) SetBufferedRounds(n int) {
	if m == nil {
		return
	}
	m.BufferedRounds.Set(float64(n))
}

func (m *Metrics) SetKilled() {
	if m == nil {
		return
	}
	m.Killed.Set(1)
}
