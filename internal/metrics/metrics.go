// Package metrics счётчики и гистограммы Prometheus для бота и планировщика.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewRegistry реестр процесса со стандартными коллекторами Go.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Metrics набор коллекторов. Нулевой указатель допустим: методы ничего не делают.
type Metrics struct {
	approvals     *prometheus.CounterVec
	denials       prometheus.Counter
	enrollments   prometheus.Counter
	removals      *prometheus.CounterVec
	notifyFailed  *prometheus.CounterVec
	sweepActions  *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	commands      *prometheus.CounterVec
}

// New регистрирует коллекторы в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		approvals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_approvals_total",
			Help: "Approved payments by resulting lifecycle branch.",
		}, []string{"kind"}),
		denials: f.NewCounter(prometheus.CounterOpts{
			Name: "membership_denials_total",
			Help: "Denied payments that removed a record.",
		}),
		enrollments: f.NewCounter(prometheus.CounterOpts{
			Name: "membership_enrollments_total",
			Help: "Records created on group join.",
		}),
		removals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_removals_total",
			Help: "Members removed from the group.",
		}, []string{"reason"}),
		notifyFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_notification_failures_total",
			Help: "Notifications that could not be delivered.",
		}, []string{"kind"}),
		sweepActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_sweep_actions_total",
			Help: "Sweep decisions by action and outcome.",
		}, []string{"action", "outcome"}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "membership_sweep_duration_seconds",
			Help:    "Duration of one expiry sweep.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_bot_commands_total",
			Help: "Bot commands by name and outcome.",
		}, []string{"command", "outcome"}),
	}
}

func (m *Metrics) Approval(kind string) {
	if m != nil {
		m.approvals.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Denial() {
	if m != nil {
		m.denials.Inc()
	}
}

func (m *Metrics) Enrollment() {
	if m != nil {
		m.enrollments.Inc()
	}
}

func (m *Metrics) Removal(reason string) {
	if m != nil {
		m.removals.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) NotificationFailed(kind string) {
	if m != nil {
		m.notifyFailed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SweepAction(action, outcome string) {
	if m != nil {
		m.sweepActions.WithLabelValues(action, outcome).Inc()
	}
}

func (m *Metrics) SweepDuration(seconds float64) {
	if m != nil {
		m.sweepDuration.Observe(seconds)
	}
}

func (m *Metrics) Command(command, outcome string) {
	if m != nil {
		m.commands.WithLabelValues(command, outcome).Inc()
	}
}
