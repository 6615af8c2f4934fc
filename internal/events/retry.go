package events

import (
	"context"
	"time"
)

// Retryer определяет стратегию повторов
type Retryer interface {
	// NextDelay возвращает паузу перед следующей попыткой.
	// attempt начинается с 1 (номер только что неудавшейся попытки).
	// Второе значение false означает, что попытки исчерпаны.
	NextDelay(attempt int) (time.Duration, bool)
}

// FixedDelay фиксированная пауза между попытками и ограниченное их число
type FixedDelay struct {
	Delay       time.Duration
	MaxAttempts int // 0 - без ограничения
}

// NextDelay реализует Retryer
func (r FixedDelay) NextDelay(attempt int) (time.Duration, bool) {
	if r.MaxAttempts > 0 && attempt >= r.MaxAttempts {
		return 0, false
	}
	return r.Delay, true
}

// Retry вызывает fn, пока она не вернет nil или стратегия не прекратит попытки.
// onFailure вызывается после каждой неудачной попытки. Возвращает число сделанных попыток и последнюю ошибку.
func Retry(ctx context.Context, r Retryer, fn func(ctx context.Context, attempt int) error, onFailure func(attempt int, err error)) (int, error) {
	attempt := 0
	for {
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}

		if onFailure != nil {
			onFailure(attempt, err)
		}

		delay, ok := r.NextDelay(attempt)
		if !ok {
			return attempt, err
		}

		if waitErr := sleep(ctx, delay); waitErr != nil {
			return attempt, err
		}
	}
}

// sleep ждет d или отмены контекста
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
