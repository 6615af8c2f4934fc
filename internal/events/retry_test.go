package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedDelay_NextDelay(t *testing.T) {
	r := FixedDelay{Delay: time.Second, MaxAttempts: 3}

	d, ok := r.NextDelay(1)
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)

	_, ok = r.NextDelay(2)
	assert.True(t, ok)

	_, ok = r.NextDelay(3)
	assert.False(t, ok)

	_, ok = FixedDelay{}.NextDelay(1000)
	assert.True(t, ok, "zero MaxAttempts means unlimited")
}

func TestRetry(t *testing.T) {
	var failed []int
	attempts, err := Retry(context.Background(), FixedDelay{MaxAttempts: 5}, func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("boom")
		}
		return nil
	}, func(attempt int, _ error) {
		failed = append(failed, attempt)
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, failed)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), FixedDelay{MaxAttempts: 2}, func(context.Context, int) error {
		calls++
		return errors.New("boom")
	}, nil)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, calls)
}

func TestRetry_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	attempts, err := Retry(ctx, FixedDelay{Delay: time.Hour, MaxAttempts: 3}, func(context.Context, int) error {
		return errors.New("boom")
	}, nil)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second)
}
