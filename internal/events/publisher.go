package events

import (
	"context"
	"errors"
	"time"

	"notes-sync-service/internal/model"
)

// Ack подтверждение доставки события брокеру
type Ack struct {
	Topic    string
	Key      string
	Attempts int
	AckedAt  time.Time
}

// Publisher отправляет события изменений в канал
type Publisher interface {
	// Publish отправляет событие и возвращает Ack или *PublishError
	Publish(ctx context.Context, topic string, event model.ChangeEvent) (Ack, error)

	// Flush блокируется до подтверждения всех ранее принятых отправок
	Flush(ctx context.Context) error
}

var _ Publisher = Discard{}

// Discard Publisher для деградированного режима "только кэш, без событий"
type Discard struct{}

func (Discard) Publish(_ context.Context, topic string, event model.ChangeEvent) (Ack, error) {
	return Ack{}, &PublishError{Topic: topic, Key: event.NoteID(), Err: ErrDisabled}
}

func (Discard) Flush(context.Context) error {
	return nil
}

// Mirror публикует событие в основной канал и копирует его в локальный Publisher
// (например, брокер наблюдателей WatchNotes). Ошибки копии не влияют на результат.
type Mirror struct {
	Primary Publisher
	Copy    Publisher
}

func (m Mirror) Publish(ctx context.Context, topic string, event model.ChangeEvent) (Ack, error) {
	ack, err := m.Primary.Publish(ctx, topic, event)
	if err == nil || errors.Is(err, ErrDisabled) {
		_, _ = m.Copy.Publish(ctx, topic, event)
	}
	return ack, err
}

func (m Mirror) Flush(ctx context.Context) error {
	return m.Primary.Flush(ctx)
}
