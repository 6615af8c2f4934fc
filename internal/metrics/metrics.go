// Package metrics счетчики Prometheus для пути распространения изменений.
// Все методы безопасны для nil получателя, чтобы компоненты можно было собирать без метрик.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notes"

// Metrics набор счетчиков сервиса
type Metrics struct {
	EventsPublished    *prometheus.CounterVec
	PublishFailures    *prometheus.CounterVec
	EventsSkipped      *prometheus.CounterVec
	EventsRedelivered  prometheus.Counter
	CacheRequests      *prometheus.CounterVec
	CacheInvalidations prometheus.Counter
	Projections        *prometheus.CounterVec
}

// New регистрирует счетчики в переданном реестре
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Change events acknowledged by the event channel.",
		}, []string{"action"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_publish_failures_total",
			Help:      "Change events that could not be published after retries.",
		}, []string{"action"}),
		EventsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Change events not emitted because eventing is disabled.",
		}, []string{"action"}),
		EventsRedelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_redelivered_total",
			Help:      "Previously failed change events re-emitted successfully.",
		}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Read-through cache lookups by result.",
		}, []string{"result"}),
		CacheInvalidations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Cache keys invalidated after committed mutations.",
		}),
		Projections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_projections_total",
			Help:      "Change events processed by the index projector.",
		}, []string{"action", "outcome"}),
	}
}

func (m *Metrics) EventPublished(action string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(action).Inc()
}

func (m *Metrics) PublishFailed(action string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) EventSkipped(action string) {
	if m == nil {
		return
	}
	m.EventsSkipped.WithLabelValues(action).Inc()
}

func (m *Metrics) EventRedelivered() {
	if m == nil {
		return
	}
	m.EventsRedelivered.Inc()
}

// CacheLookup учитывает попадание или промах кэша
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheInvalidated() {
	if m == nil {
		return
	}
	m.CacheInvalidations.Inc()
}

func (m *Metrics) Projected(action, outcome string) {
	if m == nil {
		return
	}
	m.Projections.WithLabelValues(action, outcome).Inc()
}
