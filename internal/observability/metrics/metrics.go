// Package metrics exposes Prometheus instrumentation for the scheduling
// engine. All observe methods are nil-safe so wiring stays optional.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for appointment flows.
type SchedulingMetrics struct {
	createdTotal        *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	slotConflictsTotal  prometheus.Counter
	returnsTotal        *prometheus.CounterVec
	unificationsTotal   *prometheus.CounterVec
	calendarSyncTotal   *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
}

// NewSchedulingMetrics registers the scheduling metric set.
func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "scheduling",
			Name:      "appointments_created_total",
			Help:      "Total appointments created",
		}, []string{"kind", "created_by"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Total lifecycle transitions attempted",
		}, []string{"from", "to", "outcome"}),
		slotConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "scheduling",
			Name:      "slot_conflicts_total",
			Help:      "Creations rejected because the slot was taken at commit",
		}),
		returnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "scheduling",
			Name:      "returns_total",
			Help:      "Follow-up appointments derived from completed visits",
		}, []string{"outcome"}),
		unificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "scheduling",
			Name:      "unifications_total",
			Help:      "Lead to client unifications",
		}, []string{"outcome"}),
		calendarSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "calendar",
			Name:      "sync_total",
			Help:      "External calendar operations",
		}, []string{"op", "status"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Internal notifications emitted",
		}, []string{"channel"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "availability",
			Name:      "request_seconds",
			Help:      "Latency of availability computations",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.createdTotal, m.transitionsTotal, m.slotConflictsTotal,
		m.returnsTotal, m.unificationsTotal, m.calendarSyncTotal,
		m.notificationsTotal, m.availabilityLatency,
	)
	return m
}

// ObserveCreated counts a successful appointment creation.
func (m *SchedulingMetrics) ObserveCreated(kind, createdBy string) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(kind, createdBy).Inc()
}

// ObserveTransition counts a transition attempt outcome.
func (m *SchedulingMetrics) ObserveTransition(from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, outcome).Inc()
}

// ObserveSlotConflict counts a creation lost to a concurrent writer.
func (m *SchedulingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflictsTotal.Inc()
}

// ObserveReturn counts a return-scheduling outcome.
func (m *SchedulingMetrics) ObserveReturn(outcome string) {
	if m == nil {
		return
	}
	m.returnsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUnification counts a unification outcome.
func (m *SchedulingMetrics) ObserveUnification(outcome string) {
	if m == nil {
		return
	}
	m.unificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCalendarSync counts an external calendar call.
func (m *SchedulingMetrics) ObserveCalendarSync(op, status string) {
	if m == nil {
		return
	}
	m.calendarSyncTotal.WithLabelValues(op, status).Inc()
}

// ObserveNotification counts an emitted notification per channel.
func (m *SchedulingMetrics) ObserveNotification(channel string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(channel).Inc()
}

// ObserveAvailability records the latency of one availability computation.
func (m *SchedulingMetrics) ObserveAvailability(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.Observe(seconds)
}
