package service

import "github.com/prometheus/client_golang/prometheus"

type dispatchMetrics struct {
	deliveries *prometheus.CounterVec
	attempts   prometheus.Histogram
}

func newDispatchMetrics(reg prometheus.Registerer) *dispatchMetrics {
	if reg == nil {
		return nil
	}

	m := &dispatchMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forwarder",
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Dispatch requests by final outcome",
		}, []string{"result"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forwarder",
			Subsystem: "dispatch",
			Name:      "attempts",
			Help:      "Send attempts needed per dispatch request",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),
	}

	reg.MustRegister(m.deliveries, m.attempts)
	return m
}

func (m *dispatchMetrics) observe(err error, attempts int) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	m.deliveries.WithLabelValues(result).Inc()
	m.attempts.Observe(float64(attempts))
}
