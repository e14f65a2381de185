package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/event"
)

// Metrics counts session lifecycle events published on the bus.
type Metrics struct {
	started   prometheus.Counter
	active    prometheus.Gauge
	submitted *prometheus.CounterVec
	failed    *prometheus.CounterVec
	expired   prometheus.Counter
	score     prometheus.Histogram
}

// NewMetrics registers the collectors on reg and subscribes them to eb.
func NewMetrics(reg prometheus.Registerer, eb *event.Bus) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		started: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quizdesk",
			Name:      "sessions_started_total",
			Help:      "Quiz attempts started.",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizdesk",
			Name:      "sessions_open",
			Help:      "Quiz attempts started and not yet closed.",
		}),
		submitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizdesk",
			Name:      "submissions_total",
			Help:      "Quiz attempts scored, by trigger.",
		}, []string{"trigger"}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizdesk",
			Name:      "submission_failures_total",
			Help:      "Failed scoring requests, by trigger.",
		}, []string{"trigger"}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quizdesk",
			Name:      "sessions_expired_total",
			Help:      "Quiz attempts whose clock reached zero.",
		}),
		score: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quizdesk",
			Name:      "score_percentage",
			Help:      "Score percentage of scored attempts.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
	}

	eb.Subscribe(domain.EventNameSessionStarted, func(context.Context, event.Event) error {
		m.started.Inc()
		m.active.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameSessionClosed, func(context.Context, event.Event) error {
		m.active.Dec()
		return nil
	})
	eb.Subscribe(domain.EventNameSessionExpired, func(context.Context, event.Event) error {
		m.expired.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameSessionSubmitted, func(_ context.Context, e event.Event) error {
		ev := e.(domain.EventSessionSubmitted)
		m.submitted.WithLabelValues(string(ev.Trigger)).Inc()
		m.score.Observe(ev.Result.ScorePercentage.InexactFloat64())
		return nil
	})
	eb.Subscribe(domain.EventNameSessionSubmitFailed, func(_ context.Context, e event.Event) error {
		m.failed.WithLabelValues(string(e.(domain.EventSessionSubmitFailed).Trigger)).Inc()
		return nil
	})

	return m
}
