// Package lwmetrics exposes Prometheus counters and gauges for the client
// state machine and transport layer: registration churn, retransmissions,
// observation notifications, and the current connection state.
package lwmetrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the metrics this module emits. Callers register it once
// against a prometheus.Registerer (typically prometheus.DefaultRegisterer)
// at startup.
type Registry struct {
	RegistrationAttempts *prometheus.CounterVec
	Retransmissions      prometheus.Counter
	Notifications        *prometheus.CounterVec
	ConnectionState      *prometheus.GaugeVec
	BlockTransfersActive prometheus.Gauge
}

// NewRegistry constructs the metric family and registers it against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		RegistrationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lwm2mcore",
			Name:      "registration_attempts_total",
			Help:      "Register/Update/Deregister attempts by outcome.",
		}, []string{"operation", "outcome"}),
		Retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lwm2mcore",
			Name:      "coap_retransmissions_total",
			Help:      "CON message retransmissions across all server connections.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lwm2mcore",
			Name:      "observe_notifications_total",
			Help:      "Observation notifications sent, by trigger (pmax|threshold).",
		}, []string{"trigger"}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lwm2mcore",
			Name:      "connection_state",
			Help:      "Client state machine state (1 for the active state, 0 otherwise), by server short id and state name.",
		}, []string{"ssid", "state"}),
		BlockTransfersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lwm2mcore",
			Name:      "block_transfers_active",
			Help:      "Block-wise transfers currently in progress.",
		}),
	}
	reg.MustRegister(r.RegistrationAttempts, r.Retransmissions, r.Notifications, r.ConnectionState, r.BlockTransfersActive)
	return r
}
