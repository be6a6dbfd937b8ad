package observability

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lattice"

// Metrics holds the Prometheus collectors fed by session events.
type Metrics struct {
	mutations       *prometheus.CounterVec
	renders         *prometheus.CounterVec
	renderDuration  prometheus.Histogram
	frameBytes      prometheus.Histogram
	saves           *prometheus.CounterVec
	persistDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Document mutations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Frames delivered to surfaces by mode",
			},
			[]string{"mode", "outcome"},
		),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent building and delivering a frame",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		frameBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_bytes",
			Help:      "Size of the rendered markup",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saves_total",
				Help:      "Project writes by outcome",
			},
			[]string{"outcome"},
		),
		persistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Time spent writing a project snapshot",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.mutations, m.renders, m.renderDuration, m.frameBytes, m.saves, m.persistDuration)
	return m
}

// Hooks returns lifecycle hooks that record every event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			m.mutations.WithLabelValues(e.Op, outcome(e.Err)).Inc()
		},
		OnRender: func(_ context.Context, e *domain.RenderEvent) {
			mode := "immediate"
			if e.Debounced {
				mode = "debounced"
			}
			m.renders.WithLabelValues(mode, outcome(e.Err)).Inc()
			m.renderDuration.Observe(e.Duration.Seconds())
			m.frameBytes.Observe(float64(e.Bytes))
		},
		OnPersist: func(_ context.Context, e *domain.PersistEvent) {
			m.saves.WithLabelValues(outcome(e.Err)).Inc()
			m.persistDuration.Observe(e.Duration.Seconds())
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
