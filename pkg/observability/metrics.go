package observability

import (
	"context"
	"errors"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "theatre"

// Metrics holds the collectors fed by the lifecycle hooks.
type Metrics struct {
	Evaluations        *prometheus.CounterVec
	CacheHits          prometheus.Counter
	ValueChanges       prometheus.Counter
	Failures           *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered (e.g. by a previous scene) are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Number of node and delta (re)computations.",
		}, []string{"target", "result"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Number of evaluations served from a memoized output.",
		}),
		ValueChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_changes_total",
			Help:      "Number of value-changed notifications.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Number of failed evaluations by failure kind.",
		}, []string{"kind"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Number of events fired against the charm.",
		}, []string{"event_kind", "result"}),
		TransitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Duration of event executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_kind"}),
	}

	if reg == nil {
		return m, nil
	}
	var err error
	if m.Evaluations, err = register(reg, m.Evaluations); err != nil {
		return nil, err
	}
	if m.CacheHits, err = register(reg, m.CacheHits); err != nil {
		return nil, err
	}
	if m.ValueChanges, err = register(reg, m.ValueChanges); err != nil {
		return nil, err
	}
	if m.Failures, err = register(reg, m.Failures); err != nil {
		return nil, err
	}
	if m.Transitions, err = register(reg, m.Transitions); err != nil {
		return nil, err
	}
	if m.TransitionDuration, err = register(reg, m.TransitionDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvaluate: func(_ context.Context, e *domain.EvalEvent) {
			target := "node"
			if e.Delta != "" {
				target = "delta"
			}
			result := "ok"
			if e.Output.Failed() {
				result = "failed"
				m.Failures.WithLabelValues(string(e.Output.Failure.Kind)).Inc()
			}
			m.Evaluations.WithLabelValues(target, result).Inc()
		},
		OnValueChanged: func(context.Context, *domain.EvalEvent) {
			m.ValueChanges.Inc()
		},
		OnCacheHit: func(context.Context, *domain.EvalEvent) {
			m.CacheHits.Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			kind := e.Kind.String()
			m.Transitions.WithLabelValues(kind, result).Inc()
			m.TransitionDuration.WithLabelValues(kind).Observe(e.Duration.Seconds())
		},
	}
}
