// Package metrics exposes the prometheus instrumentation shared by the
// call-engine services. Counters are incremented directly by the components;
// scrape-time gauges come from the Collector.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "call_engine"

var (
	CallsPlacedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calls_placed_total",
		Help:      "Calls originated through the PBX, by outcome.",
	}, []string{"outcome"})

	CallsRegisteredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calls_registered_total",
		Help:      "register_call operations, split by new cycle vs retry update.",
	}, []string{"kind"})

	AcknowledgementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "acknowledgements_total",
		Help:      "Acknowledgements received, inside vs outside the firing window.",
	}, []string{"window"})

	RecallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recalls_total",
		Help:      "Retry dials issued by the recaller.",
	})

	BackupCallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backup_calls_total",
		Help:      "Backup-callee escalation dials issued by the recaller.",
	})

	PbxEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pbx_events_total",
		Help:      "PBX WebSocket frames consumed, by event type.",
	}, []string{"type"})

	AudioSynthesisTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_synthesis_total",
		Help:      "Audio cache requests, by result (cached, synthesized, failed).",
	}, []string{"result"})

	SMSSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sms_sent_total",
		Help:      "SMS sends attempted, by outcome.",
	}, []string{"outcome"})

	AlertsDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_dispatched_total",
		Help:      "Alerts routed by the dispatcher, by action.",
	}, []string{"action"})
)

func init() {
	prometheus.MustRegister(
		CallsPlacedTotal,
		CallsRegisteredTotal,
		AcknowledgementsTotal,
		RecallsTotal,
		BackupCallsTotal,
		PbxEventsTotal,
		AudioSynthesisTotal,
		SMSSentTotal,
		AlertsDispatchedTotal,
	)
}
