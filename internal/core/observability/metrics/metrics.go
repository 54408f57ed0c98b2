// Package metrics records build stage outcomes. The Prometheus recorder exposes
//
//	hive_build_stage_total{stage,status}
//	hive_build_stage_seconds{stage}
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage outcomes.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Recorder receives one observation per finished build stage.
type Recorder interface {
	ObserveStage(stage, status string, elapsed time.Duration)
}

// Timer measures one stage. Call Done exactly once.
type Timer struct {
	recorder Recorder
	stage    string
	start    time.Time
}

// Start begins timing stage on r.
func Start(r Recorder, stage string) *Timer {
	if r == nil {
		r = Nop()
	}
	return &Timer{recorder: r, stage: stage, start: time.Now()}
}

// Done records the stage with a status derived from err.
func (t *Timer) Done(err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	t.DoneWith(status)
}

func (t *Timer) DoneWith(status string) {
	t.recorder.ObserveStage(t.stage, status, time.Since(t.start))
}

// Prometheus is a Recorder backed by a counter and a histogram vector.
type Prometheus struct {
	stages   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hive",
			Subsystem: "build",
			Name:      "stage_total",
			Help:      "Build stages run, by stage and outcome.",
		}, []string{"stage", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hive",
			Subsystem: "build",
			Name:      "stage_seconds",
			Help:      "Build stage duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
	}
	if reg == nil {
		return p, nil
	}
	for _, c := range []prometheus.Collector{p.stages, p.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveStage(stage, status string, elapsed time.Duration) {
	p.stages.WithLabelValues(stage, status).Inc()
	if status != StatusSkipped {
		p.duration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
}

// Stages exposes the counter vector, mostly for tests.
func (p *Prometheus) Stages() *prometheus.CounterVec { return p.stages }

type nop struct{}

func (nop) ObserveStage(string, string, time.Duration) {}

// Nop returns a Recorder that drops everything.
func Nop() Recorder { return nop{} }

// Provide returns a recorder registered on the default Prometheus registry,
// falling back to Nop when registration fails.
func Provide() Recorder {
	p, err := NewPrometheus(prometheus.DefaultRegisterer)
	if err != nil {
		return Nop()
	}
	return p
}
