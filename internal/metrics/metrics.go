// Package metrics exposes flow editing activity as Prometheus metrics. A
// Metrics value owns its registry, so several instances never clash.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/dripflow/internal/rules"
	"github.com/specialistvlad/dripflow/internal/validate"
)

const namespace = "dripflow"

// Metrics collects validation, rule engine, submission and editor link
// activity. It satisfies session.Observer and session.DecisionObserver.
type Metrics struct {
	registry *prometheus.Registry

	ValidationsTotal *prometheus.CounterVec
	IssuesCurrent    *prometheus.GaugeVec
	DecisionsTotal   *prometheus.CounterVec
	SubmissionsTotal *prometheus.CounterVec
	EditorEvents     *prometheus.CounterVec
}

var categories = []validate.Category{
	validate.CategoryRuleViolation,
	validate.CategoryConfigurationIncomplete,
	validate.CategoryCoverage,
	validate.CategoryPrecondition,
	validate.CategoryAdvisory,
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "validations_total",
				Help:      "Validation passes by outcome",
			},
			[]string{"result"},
		),
		IssuesCurrent: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "issues",
				Help:      "Issues reported by the latest validation pass, by category",
			},
			[]string{"category"},
		),
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rules",
				Name:      "decisions_total",
				Help:      "Connection proposals by severity and deciding rule",
			},
			[]string{"severity", "rule"},
		),
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "submit",
				Name:      "requests_total",
				Help:      "Campaign submissions by status",
			},
			[]string{"status"},
		),
		EditorEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "editor",
				Name:      "events_total",
				Help:      "Events received from the live editor, by event name and outcome",
			},
			[]string{"event", "status"},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FlowValidated records a validation pass.
func (m *Metrics) FlowValidated(_ context.Context, res validate.Result) {
	m.ValidationsTotal.WithLabelValues(outcome(res.IsValid, "valid", "invalid")).Inc()
	for _, c := range categories {
		m.IssuesCurrent.WithLabelValues(string(c)).Set(float64(res.Count(c)))
	}
}

// ConnectionDecided records a rule engine decision.
func (m *Metrics) ConnectionDecided(_ context.Context, _ rules.Proposal, d rules.Decision) {
	m.DecisionsTotal.WithLabelValues(d.Severity.String(), d.Rule).Inc()
}

// RecordSubmission records the outcome of a campaign submission.
func (m *Metrics) RecordSubmission(success bool) {
	m.SubmissionsTotal.WithLabelValues(outcome(success, "success", "error")).Inc()
}

// RecordEditorEvent records an event received from the live editor.
func (m *Metrics) RecordEditorEvent(event string, success bool) {
	m.EditorEvents.WithLabelValues(event, outcome(success, "success", "error")).Inc()
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
