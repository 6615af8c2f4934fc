// Package projector применяет события изменений к поисковому индексу.
// Проекция идемпотентна: дубликаты и события вне порядка разрешаются по updated_at (last-writer-wins).
package projector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"notes-sync-service/internal/events"
	"notes-sync-service/internal/metrics"
	"notes-sync-service/internal/model"
	"notes-sync-service/internal/search"
)

// Outcome результат применения события
type Outcome string

const (
	// Applied индекс изменен
	Applied Outcome = "applied"
	// Stale событие старше состояния индекса и отброшено
	Stale Outcome = "stale"
	// Noop изменять нечего: дубликат или удаление отсутствующего документа
	Noop Outcome = "noop"
)

// Projector проектор индекса
type Projector struct {
	index     search.Index
	logger    *zap.Logger
	metrics   *metrics.Metrics
	retryWait time.Duration
}

// Option настраивает Projector
type Option func(*Projector)

func WithLogger(l *zap.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Projector) {
		p.metrics = m
	}
}

// WithRetryWait пауза перед повтором после ошибки индекса
func WithRetryWait(d time.Duration) Option {
	return func(p *Projector) {
		p.retryWait = d
	}
}

func New(index search.Index, opts ...Option) *Projector {
	p := &Projector{
		index:     index,
		logger:    zap.NewNop(),
		retryWait: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.retryWait <= 0 {
		p.retryWait = time.Second
	}
	return p
}

// Apply применяет одно событие. Ошибка возвращается только при сбое индекса.
func (p *Projector) Apply(ctx context.Context, event model.ChangeEvent) (Outcome, error) {
	outcome, err := p.apply(ctx, event)
	if err != nil {
		return "", err
	}

	p.metrics.Projected(string(event.Action), string(outcome))
	if outcome == Stale {
		p.logger.Info("discarded stale event",
			zap.String("action", string(event.Action)),
			zap.String("note_id", event.NoteID()),
			zap.Int64("version", event.Version()))
	}
	return outcome, nil
}

func (p *Projector) apply(ctx context.Context, event model.ChangeEvent) (Outcome, error) {
	id := event.NoteID()
	version := event.Version()

	current, err := p.index.Version(ctx, id)
	if err != nil {
		return "", fmt.Errorf("read index version of %s: %w", id, err)
	}

	switch event.Action {
	case model.ActionCreate, model.ActionUpdate:
		switch {
		case version < current.Value, version == current.Value && current.Deleted:
			return Stale, nil
		case version == current.Value:
			return Noop, nil
		}

		err = p.index.Upsert(ctx, search.DocumentFromNote(event.Note), version)
		if errors.Is(err, search.ErrStale) {
			return Stale, nil
		}
		if err != nil {
			return "", fmt.Errorf("upsert %s: %w", id, err)
		}
		return Applied, nil

	case model.ActionDelete:
		switch {
		case current.Deleted && version <= current.Value:
			return Noop, nil
		case version < current.Value:
			return Stale, nil
		}

		// Надгробие пишется и для отсутствующего документа, чтобы запоздавший create не вернул его
		err = p.index.Delete(ctx, id, version)
		if errors.Is(err, search.ErrStale) {
			return Stale, nil
		}
		if err != nil {
			return "", fmt.Errorf("delete %s: %w", id, err)
		}
		if !current.Exists() {
			return Noop, nil
		}
		return Applied, nil
	}

	return "", fmt.Errorf("unknown action %q", event.Action)
}

// Run читает события из consumer до отмены контекста.
// Сообщение подтверждается только после успешной проекции, ошибки индекса повторяются.
// Нераспознанные сообщения логируются и подтверждаются, чтобы не блокировать партицию.
func (p *Projector) Run(ctx context.Context, consumer events.Consumer) error {
	p.logger.Info("index projector started")
	defer p.logger.Info("index projector stopped")

	for {
		msg, err := consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, events.ErrClosed) {
				return nil
			}
			return fmt.Errorf("fetch event: %w", err)
		}

		event, err := events.Decode(msg.Value)
		if err != nil {
			p.logger.Error("skipping undecodable event",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		} else if err := p.applyWithRetry(ctx, event); err != nil {
			return nil
		}

		if err := consumer.Commit(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// applyWithRetry повторяет проекцию до успеха. Ошибку возвращает только при отмене контекста.
func (p *Projector) applyWithRetry(ctx context.Context, event model.ChangeEvent) error {
	_, err := events.Retry(ctx, events.FixedDelay{Delay: p.retryWait}, func(ctx context.Context, _ int) error {
		_, err := p.Apply(ctx, event)
		return err
	}, func(attempt int, err error) {
		p.logger.Warn("projection failed, retrying",
			zap.String("note_id", event.NoteID()),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", p.retryWait),
			zap.Error(err))
	})
	return err
}

// Reindex проецирует все сохраненные заметки как события обновления. Возвращает число примененных.
func (p *Projector) Reindex(ctx context.Context, notes []model.Note) (int, error) {
	applied := 0
	for _, n := range notes {
		event, err := model.NewChangeEvent(model.ActionUpdate, n, time.Now())
		if err != nil {
			return applied, err
		}

		outcome, err := p.Apply(ctx, event)
		if err != nil {
			return applied, err
		}
		if outcome == Applied {
			applied++
		}
	}

	p.logger.Info("reindex finished", zap.Int("notes", len(notes)), zap.Int("applied", applied))
	return applied, nil
}
