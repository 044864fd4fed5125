// Package metrics holds the Prometheus collectors for the handoff service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "handoff"

// Token rejection reasons.
const (
	ReasonNotFound  = "not_found"
	ReasonInvalid   = "invalid"
	ReasonTransient = "unavailable"
)

// Metrics is the set of collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	TokensIssued    prometheus.Counter
	TokensRedeemed  prometheus.Counter
	TokensRejected  *prometheus.CounterVec
	Transfers       prometheus.Counter
	Messages        *prometheus.CounterVec
	Events          *prometheus.CounterVec
	SweeperEvicted  prometheus.Counter
	SweeperFailures prometheus.Counter
	Connections     *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg gets a
// fresh registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Transfer tokens issued.",
		}),
		TokensRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_redeemed_total",
			Help:      "Transfer tokens redeemed by a kiosk.",
		}),
		TokensRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_rejected_total",
			Help:      "Transfer token validations that failed.",
		}, []string{"reason"}),
		Transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_completed_total",
			Help:      "Sessions handed off to a kiosk.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Chat messages processed.",
		}, []string{"channel"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound realtime events dispatched to a handler.",
		}, []string{"channel", "event"}),
		SweeperEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_evicted_total",
			Help:      "Stale keys removed by the sweeper.",
		}),
		SweeperFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_failures_total",
			Help:      "Sweeper runs that failed.",
		}),
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live realtime connections.",
		}, []string{"channel"}),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{
		m.TokensIssued,
		m.TokensRedeemed,
		m.TokensRejected,
		m.Transfers,
		m.Messages,
		m.Events,
		m.SweeperEvicted,
		m.SweeperFailures,
		m.Connections,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) TokenIssued() {
	if m != nil {
		m.TokensIssued.Inc()
	}
}

func (m *Metrics) TokenRedeemed() {
	if m != nil {
		m.TokensRedeemed.Inc()
	}
}

func (m *Metrics) TokenRejected(reason string) {
	if m != nil {
		m.TokensRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) TransferCompleted() {
	if m != nil {
		m.Transfers.Inc()
	}
}

func (m *Metrics) MessageHandled(channel string) {
	if m != nil {
		m.Messages.WithLabelValues(channel).Inc()
	}
}

// EventReceived counts an inbound event. Only registered events reach it, so
// the label set stays bounded.
func (m *Metrics) EventReceived(channel, event string) {
	if m != nil {
		m.Events.WithLabelValues(channel, event).Inc()
	}
}

// ObserveSweep matches the sweeper observer signature.
func (m *Metrics) ObserveSweep(evicted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SweeperFailures.Inc()
	}
	m.SweeperEvicted.Add(float64(evicted))
}

// ConnGauge returns a callback tracking live connections on channel.
func (m *Metrics) ConnGauge(channel string) func(delta int) {
	if m == nil {
		return nil
	}
	g := m.Connections.WithLabelValues(channel)
	return func(delta int) {
		g.Add(float64(delta))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
