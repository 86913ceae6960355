package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics about rule executions.
//
//	ruleflow_runs_total{rule, status}
//	ruleflow_run_duration_seconds{rule}
//	ruleflow_step_visits_total{rule, type}
//	ruleflow_step_errors_total{rule, step}
type Metrics struct {
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	stepVisits *prometheus.CounterVec
	stepErrors *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleflow_runs_total",
				Help: "Total number of rule executions by outcome",
			},
			[]string{"rule", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ruleflow_run_duration_seconds",
				Help:    "Duration of rule executions",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"rule"},
		),
		stepVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleflow_step_visits_total",
				Help: "Total number of step visits by step type",
			},
			[]string{"rule", "type"},
		),
		stepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleflow_step_errors_total",
				Help: "Total number of step failures",
			},
			[]string{"rule", "step"},
		),
	}
	for _, c := range []prometheus.Collector{m.runs, m.duration, m.stepVisits, m.stepErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Instrument subscribes the collectors to p and returns the function that
// unsubscribes them. The rule label is the pipeline name.
func (m *Metrics) Instrument(p *pipeline.Pipeline) func() {
	l := &metricsListener{metrics: m, rule: p.Name()}
	p.AddListener(l)
	return func() { p.RemoveListener(l) }
}

// metricsListener observes the executions of one pipeline.
type metricsListener struct {
	metrics *Metrics
	rule    string

	runs sync.Map // *pipeline.Executor -> *runMetrics
}

type runMetrics struct {
	started time.Time
	failed  bool
	steps   *pipeline.StepHooks
}

func (l *metricsListener) ExecuteStart(ctx context.Context, ex *pipeline.Executor) {
	run := &runMetrics{
		started: time.Now(),
		steps: &pipeline.StepHooks{
			OnStepBegin: func(_ context.Context, step *domain.Step, _ string) {
				l.metrics.stepVisits.WithLabelValues(l.rule, string(step.Type())).Inc()
			},
			OnStepError: func(_ context.Context, step *domain.Step, _ error) {
				l.metrics.stepErrors.WithLabelValues(l.rule, string(step.ID())).Inc()
			},
		},
	}
	l.runs.Store(ex, run)
	ex.AddListener(run.steps)
}

func (l *metricsListener) ExecuteError(ctx context.Context, ex *pipeline.Executor, err error) {
	if v, ok := l.runs.Load(ex); ok {
		v.(*runMetrics).failed = true
	}
}

func (l *metricsListener) ExecuteEnd(ctx context.Context, ex *pipeline.Executor) {
	v, ok := l.runs.LoadAndDelete(ex)
	if !ok {
		return
	}
	run := v.(*runMetrics)
	ex.RemoveListener(run.steps)

	status := domain.RunStatusSucceeded
	if run.failed {
		status = domain.RunStatusFailed
	}
	l.metrics.runs.WithLabelValues(l.rule, string(status)).Inc()
	l.metrics.duration.WithLabelValues(l.rule).Observe(time.Since(run.started).Seconds())
}

// Runs exposes the run counter, labelled rule and status.
func (m *Metrics) Runs() *prometheus.CounterVec { return m.runs }

// StepVisits exposes the step visit counter, labelled rule and type.
func (m *Metrics) StepVisits() *prometheus.CounterVec { return m.stepVisits }

// StepErrors exposes the step failure counter, labelled rule and step.
func (m *Metrics) StepErrors() *prometheus.CounterVec { return m.stepErrors }
