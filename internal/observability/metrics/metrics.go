// Package metrics exposes prometheus instruments for webhook and gateway
// activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	webhookDeliveries *prometheus.CounterVec
	webhookEvents     *prometheus.CounterVec
	gatewayCalls      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_webhook_deliveries_total",
			Help: "Webhook deliveries received, by outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_webhook_events_total",
			Help: "Routed webhook events, by event type and outcome.",
		}, []string{"event", "outcome"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_gateway_calls_total",
			Help: "Outbound gateway RPC calls, by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.webhookDeliveries, m.webhookEvents, m.gatewayCalls)
	}
	return m
}

func (m *Metrics) RecordDelivery(outcome string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) RecordGatewayCall(op, outcome string) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(op, outcome).Inc()
}

// Module provides the prometheus registry and application instruments.
var Module = fx.Module("observability.metrics",
	fx.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		return reg
	}),
	fx.Provide(func(reg *prometheus.Registry) prometheus.Registerer { return reg }),
	fx.Provide(New),
)
