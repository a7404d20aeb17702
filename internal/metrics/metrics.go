// Package metrics exposes prometheus collectors for the orchestration core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "assistant_core"

type Metrics struct {
	analyzerResults  *prometheus.CounterVec
	analyzerLatency  *prometheus.HistogramVec
	synthesisFailed  prometheus.Counter
	followUps        *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	idleTimeouts     prometheus.Counter
	workflowCompiles *prometheus.CounterVec
	skippedActions   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		analyzerResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_results_total",
			Help:      "Analyzer invocations by worker and outcome.",
		}, []string{"worker", "outcome"}),
		analyzerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyzer_duration_seconds",
			Help:      "Analyzer latency by worker.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"worker"}),
		synthesisFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_failures_total",
			Help:      "Utterances for which no decision could be synthesized.",
		}),
		followUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_up_calls_total",
			Help:      "Dependent calls made after synthesis by kind and outcome.",
		}, []string{"kind", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_transitions_total",
			Help:      "Conversation state transitions.",
		}, []string{"transition"}),
		idleTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_idle_timeouts_total",
			Help:      "Conversations deactivated by the idle timer.",
		}),
		workflowCompiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_compiles_total",
			Help:      "Workflow compilations by outcome.",
		}, []string{"outcome"}),
		skippedActions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_skipped_actions_total",
			Help:      "Workflow actions dropped because the registry could not resolve them.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.analyzerResults, m.analyzerLatency, m.synthesisFailed, m.followUps,
			m.transitions, m.idleTimeouts, m.workflowCompiles, m.skippedActions,
		)
	}
	return m
}

func (m *Metrics) ObserveAnalyzer(worker string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.analyzerResults.WithLabelValues(worker, outcome).Inc()
	m.analyzerLatency.WithLabelValues(worker).Observe(d.Seconds())
}

func (m *Metrics) SynthesisFailed() {
	if m == nil {
		return
	}
	m.synthesisFailed.Inc()
}

func (m *Metrics) FollowUp(kind string, err error) {
	if m == nil {
		return
	}
	m.followUps.WithLabelValues(kind, outcome(err)).Inc()
}

func (m *Metrics) Transition(name string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name).Inc()
}

func (m *Metrics) IdleTimeout() {
	if m == nil {
		return
	}
	m.idleTimeouts.Inc()
}

func (m *Metrics) WorkflowCompiled(err error) {
	if m == nil {
		return
	}
	m.workflowCompiles.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ActionSkipped() {
	if m == nil {
		return
	}
	m.skippedActions.Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
