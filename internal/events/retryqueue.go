package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"notes-sync-service/internal/logger"
	"notes-sync-service/internal/metrics"
	"notes-sync-service/internal/model"
)

// FailureHook вызывается один раз для события, которое не удалось опубликовать
type FailureHook func(ctx context.Context, event model.ChangeEvent, err error)

// RetryQueue ограниченная очередь событий, не дошедших до брокера.
// Hook подключается к координатору мутаций, Redeliver периодически переотправляет события.
// При переполнении вытесняются самые старые события.
type RetryQueue struct {
	mu       sync.Mutex
	events   []model.ChangeEvent
	capacity int

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRetryQueue создает очередь заданной емкости
func NewRetryQueue(capacity int, log *zap.Logger, m *metrics.Metrics) *RetryQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RetryQueue{
		capacity: capacity,
		logger:   logger.OrNop(log),
		metrics:  m,
	}
}

// Hook реализует FailureHook
func (q *RetryQueue) Hook(_ context.Context, event model.ChangeEvent, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append(q.events, event)
	q.trimLocked()

	q.logger.Info("event queued for redelivery",
		zap.String("action", string(event.Action)),
		zap.String("note_id", event.NoteID()),
		zap.Int("queued", len(q.events)),
		zap.NamedError("cause", err))
}

// Len число событий в очереди
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Redeliver переотправляет события по порядку и останавливается на первой ошибке.
// Неотправленное событие возвращается в начало очереди. Возвращает число доставленных событий.
func (q *RetryQueue) Redeliver(ctx context.Context, topic string, p Publisher) (int, error) {
	sent := 0
	for {
		event, ok := q.pop()
		if !ok {
			break
		}

		if _, err := p.Publish(ctx, topic, event); err != nil {
			q.pushFront(event)
			q.logger.Warn("event redelivery failed",
				zap.String("note_id", event.NoteID()),
				zap.Int("delivered", sent),
				zap.Error(err))
			return sent, err
		}

		sent++
		q.metrics.EventRedelivered()
	}

	if sent > 0 {
		q.logger.Info("redelivered queued events", zap.Int("delivered", sent))
	}

	return sent, p.Flush(ctx)
}

func (q *RetryQueue) pop() (model.ChangeEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return model.ChangeEvent{}, false
	}
	event := q.events[0]
	q.events = q.events[1:]
	return event, true
}

func (q *RetryQueue) pushFront(event model.ChangeEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append([]model.ChangeEvent{event}, q.events...)
	q.trimLocked()
}

func (q *RetryQueue) trimLocked() {
	if over := len(q.events) - q.capacity; over > 0 {
		for _, dropped := range q.events[:over] {
			q.logger.Error("redelivery queue full, dropping event",
				zap.String("action", string(dropped.Action)),
				zap.String("note_id", dropped.NoteID()))
		}
		q.events = q.events[over:]
	}
}
