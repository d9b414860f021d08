// Package metrics records pipeline-level Prometheus metrics: node invocations,
// implementation steps and whole runs. LLM request metrics live in the LLM
// middleware; both register on the same registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Recorder receives pipeline events.
type Recorder interface {
	ObserveNode(node string, duration time.Duration, err error)
	ObserveStep(duration time.Duration, err error)
	ObserveRun(status string, duration time.Duration)
}

// Nop discards every event.
type Nop struct{}

// ObserveNode implements Recorder.
func (Nop) ObserveNode(string, time.Duration, error) {}

// ObserveStep implements Recorder.
func (Nop) ObserveStep(time.Duration, error) {}

// ObserveRun implements Recorder.
func (Nop) ObserveRun(string, time.Duration) {}

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	nodeInvocations *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
	stepsTotal      *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
}

// NewPrometheusRecorder registers the pipeline metrics with reg. A nil reg uses
// the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		nodeInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appforge_node_invocations_total",
				Help: "Total number of orchestrator node invocations by node and status",
			},
			[]string{"node", "status"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appforge_node_duration_seconds",
				Help:    "Duration of orchestrator node invocations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"node"},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appforge_steps_total",
				Help: "Total number of implementation steps by status",
			},
			[]string{"status"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appforge_runs_total",
				Help: "Total number of runs by final status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "appforge_run_duration_seconds",
				Help:    "Duration of whole runs in seconds",
				Buckets: []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
			},
		),
	}
}

// ObserveNode implements Recorder.
func (p *PrometheusRecorder) ObserveNode(node string, duration time.Duration, err error) {
	p.nodeInvocations.WithLabelValues(node, status(err)).Inc()
	p.nodeDuration.WithLabelValues(node).Observe(duration.Seconds())
}

// ObserveStep implements Recorder.
func (p *PrometheusRecorder) ObserveStep(_ time.Duration, err error) {
	p.stepsTotal.WithLabelValues(status(err)).Inc()
}

// ObserveRun implements Recorder.
func (p *PrometheusRecorder) ObserveRun(runStatus string, duration time.Duration) {
	p.runsTotal.WithLabelValues(runStatus).Inc()
	p.runDuration.Observe(duration.Seconds())
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusSuccess
}
