package driver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/applyplan"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/opt"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
)

// Metrics exposes the driver loop's operational counters. All metrics carry
// the twin_ prefix and register on their own registry so the /metrics
// endpoint serves exactly what the daemon owns.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal     prometheus.Counter
	CycleDuration   prometheus.Histogram
	RisksBySeverity *prometheus.GaugeVec
	FallbacksTotal  prometheus.Counter
	ActionsTotal    prometheus.Counter
	RegressionTotal prometheus.Counter
	EventReloads    prometheus.Counter
}

// NewMetrics builds and registers the driver metric set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twin_cycles_total",
			Help: "Rolling-horizon cycles completed.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "twin_cycle_duration_seconds",
			Help:    "Wall-clock duration of one full cycle (replay, radar, propose, apply).",
			Buckets: prometheus.DefBuckets,
		}),
		RisksBySeverity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "twin_risks",
			Help: "Risks detected in the latest assessment, by severity.",
		}, []string{"severity"}),
		FallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twin_solver_fallbacks_total",
			Help: "Cycles where the exact search timed out and the greedy strategy produced the plan.",
		}),
		ActionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twin_actions_proposed_total",
			Help: "Actions proposed across all cycles.",
		}),
		RegressionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twin_plan_regressions_total",
			Help: "Apply-and-validate runs that flagged a regression.",
		}),
		EventReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twin_event_reloads_total",
			Help: "Live event file reloads triggered by the watcher.",
		}),
	}
	reg.MustRegister(
		m.CyclesTotal, m.CycleDuration, m.RisksBySeverity,
		m.FallbacksTotal, m.ActionsTotal, m.RegressionTotal, m.EventReloads,
	)
	return m
}

// observeCycle records one completed cycle's outcome.
func (m *Metrics) observeCycle(elapsed time.Duration, as *risk.Assessment, plan *opt.Plan, rep *applyplan.Report) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(elapsed.Seconds())
	for _, sev := range []risk.Severity{risk.SeverityCritical, risk.SeverityHigh, risk.SeverityMedium, risk.SeverityLow} {
		m.RisksBySeverity.WithLabelValues(string(sev)).Set(float64(as.KPIs.BySeverity[sev]))
	}
	if plan.Audit.TimedOut {
		m.FallbacksTotal.Inc()
	}
	m.ActionsTotal.Add(float64(len(plan.Actions)))
	if rep != nil && rep.Regression {
		m.RegressionTotal.Inc()
	}
}
