package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-sync-service/internal/events"
	"notes-sync-service/internal/model"
)

func testEvent(t *testing.T, id string) model.ChangeEvent {
	t.Helper()
	now := time.Now().UTC()
	ev, err := model.NewChangeEvent(model.ActionCreate, model.Note{ID: id, Title: "t", Content: "c", CreatedAt: now, UpdatedAt: now}, now)
	require.NoError(t, err)
	return ev
}

func TestBroker_PublishDeliversToTopicSubscribers(t *testing.T) {
	b := NewBroker(4)
	sub := b.Subscribe("note_events")
	other := b.Subscribe("other")
	defer sub.Close()
	defer other.Close()

	ack, err := b.Publish(context.Background(), "note_events", testEvent(t, "n1"))
	require.NoError(t, err)
	assert.Equal(t, "n1", ack.Key)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := sub.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "n1", string(msg.Key))

	decoded, err := events.Decode(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, model.ActionCreate, decoded.Action)

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer shortCancel()
	_, err = other.Fetch(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroker_FullBufferFailsPublish(t *testing.T) {
	b := NewBroker(1)
	sub := b.Subscribe("note_events")
	defer sub.Close()

	_, err := b.Publish(context.Background(), "note_events", testEvent(t, "n1"))
	require.NoError(t, err)

	_, err = b.Publish(context.Background(), "note_events", testEvent(t, "n2"))
	require.Error(t, err)

	var pErr *events.PublishError
	require.ErrorAs(t, err, &pErr)
	assert.ErrorIs(t, err, ErrBackpressure)
	assert.Equal(t, "n2", pErr.Key)
}

func TestSubscription_CloseEndsFetch(t *testing.T) {
	b := NewBroker(1)
	sub := b.Subscribe("note_events")
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, err := sub.Fetch(context.Background())
	assert.ErrorIs(t, err, events.ErrClosed)

	// без подписчиков публикация успешна
	_, err = b.Publish(context.Background(), "note_events", testEvent(t, "n1"))
	assert.NoError(t, err)
}
