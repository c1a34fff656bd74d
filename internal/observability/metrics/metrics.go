package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the scheduling core.
type SchedulingMetrics struct {
	checksTotal     *prometheus.CounterVec
	checkLatency    *prometheus.HistogramVec
	commitConflicts prometheus.Counter
	reschedules     *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "scheduling",
			Name:      "availability_checks_total",
			Help:      "Total availability checks by result",
		}, []string{"result"}),
		checkLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicdesk",
			Subsystem: "scheduling",
			Name:      "availability_check_seconds",
			Help:      "Latency of availability checks",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		commitConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "scheduling",
			Name:      "commit_conflicts_total",
			Help:      "Writes rejected by the overlap constraint after the pre-check passed",
		}),
		reschedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicdesk",
			Subsystem: "scheduling",
			Name:      "reschedules_total",
			Help:      "Drag-reschedule gestures by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.checksTotal, m.checkLatency, m.commitConflicts, m.reschedules)
	return m
}

func (m *SchedulingMetrics) ObserveCheck(result string, seconds float64) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(result).Inc()
	m.checkLatency.WithLabelValues(result).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveCommitConflict() {
	if m == nil {
		return
	}
	m.commitConflicts.Inc()
}

func (m *SchedulingMetrics) ObserveReschedule(outcome string) {
	if m == nil {
		return
	}
	m.reschedules.WithLabelValues(outcome).Inc()
}
