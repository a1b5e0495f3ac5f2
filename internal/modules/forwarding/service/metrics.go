package service

import "github.com/prometheus/client_golang/prometheus"

const (
	resultMatched  = "matched"
	resultFiltered = "filtered"
	resultSkipped  = "skipped"
	resultError    = "error"
)

type engineMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	dispatchRequests   *prometheus.CounterVec
	ruleErrors         *prometheus.CounterVec
	truncations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
}

// newEngineMetrics returns nil when reg is nil; every call site checks for that.
func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	if reg == nil {
		return nil
	}

	m := &engineMetrics{
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forwarder",
			Subsystem: "rule",
			Name:      "evaluations_total",
			Help:      "Rule evaluations by outcome",
		}, []string{"rule_name", "result"}),

		dispatchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forwarder",
			Subsystem: "rule",
			Name:      "dispatch_requests_total",
			Help:      "Dispatch requests produced per rule",
		}, []string{"rule_name"}),

		ruleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forwarder",
			Subsystem: "rule",
			Name:      "rule_errors_total",
			Help:      "Unexpected failures while evaluating a rule",
		}, []string{"rule_name"}),

		truncations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forwarder",
			Subsystem: "rule",
			Name:      "truncations_total",
			Help:      "Outbound messages truncated to the transport limit",
		}, []string{"rule_name"}),

		evaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forwarder",
			Subsystem: "rule",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent filtering and editing a message for one rule",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"rule_name"}),
	}

	reg.MustRegister(
		m.evaluationsTotal,
		m.dispatchRequests,
		m.ruleErrors,
		m.truncations,
		m.evaluationDuration,
	)

	return m
}
