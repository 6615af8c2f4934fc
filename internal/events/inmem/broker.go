// Package inmem канал событий в памяти процесса. Используется при channel.driver=memory,
// когда сервис и проектор индекса работают в одном процессе, и в тестах.
package inmem

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"notes-sync-service/internal/events"
	"notes-sync-service/internal/model"
)

// ErrBackpressure буфер подписчика переполнен, событие не принято
var ErrBackpressure = errors.New("subscriber buffer is full")

var (
	_ events.Publisher = (*Broker)(nil)
	_ events.Consumer  = (*Subscription)(nil)
)

// Broker управляет подписчиками по топикам
type Broker struct {
	subscribers map[*Subscription]bool
	mu          sync.RWMutex
	buffer      int
	offset      atomic.Int64
}

// NewBroker создает брокер с заданным размером буфера подписчика
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{
		subscribers: make(map[*Subscription]bool),
		buffer:      buffer,
	}
}

// Subscribe добавляет подписчика на topic
func (b *Broker) Subscribe(topic string) *Subscription {
	s := &Subscription{
		topic:  topic,
		ch:     make(chan events.Message, b.buffer),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[s] = true
	return s
}

// Unsubscribe удаляет подписчика и закрывает его канал
func (b *Broker) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[s]; ok {
		close(s.ch)
		delete(b.subscribers, s)
	}
}

// Publish доставляет событие всем подписчикам topic.
// Если буфер подписчика переполнен, публикация завершается ошибкой, а не молча теряет событие.
func (b *Broker) Publish(ctx context.Context, topic string, event model.ChangeEvent) (events.Ack, error) {
	key := event.NoteID()

	value, err := events.Encode(event)
	if err != nil {
		return events.Ack{}, &events.PublishError{Topic: topic, Key: key, Attempts: 1, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return events.Ack{}, &events.PublishError{Topic: topic, Key: key, Attempts: 1, Err: err}
	}

	msg := events.Message{
		Topic:  topic,
		Offset: b.offset.Add(1),
		Key:    []byte(key),
		Value:  value,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var dropped int
	for s := range b.subscribers {
		if s.topic != topic {
			continue
		}
		select {
		case s.ch <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return events.Ack{}, &events.PublishError{Topic: topic, Key: key, Attempts: 1, Err: ErrBackpressure}
	}

	return events.Ack{Topic: topic, Key: key, Attempts: 1, AckedAt: time.Now()}, nil
}

// Flush доставка синхронная, ждать нечего
func (b *Broker) Flush(context.Context) error {
	return nil
}

// Subscription подписка на один topic
type Subscription struct {
	topic  string
	ch     chan events.Message
	broker *Broker
}

func (s *Subscription) Fetch(ctx context.Context) (events.Message, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return events.Message{}, events.ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return events.Message{}, ctx.Err()
	}
}

// Commit в памяти нечего подтверждать
func (s *Subscription) Commit(context.Context, events.Message) error {
	return nil
}

func (s *Subscription) Close() error {
	s.broker.Unsubscribe(s)
	return nil
}
