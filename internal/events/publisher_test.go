package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-sync-service/internal/model"
)

func TestMirror(t *testing.T) {
	ctx := context.Background()

	t.Run("copies delivered events", func(t *testing.T) {
		primary := &recordingPublisher{failAfter: -1}
		watchers := &recordingPublisher{failAfter: 0}
		m := Mirror{Primary: primary, Copy: watchers}

		ack, err := m.Publish(ctx, "note_events", sampleEvent(t, model.ActionCreate, "a"))
		require.NoError(t, err)
		assert.Equal(t, "a", ack.Key)
		assert.Len(t, primary.published, 1)

		require.NoError(t, m.Flush(ctx))
		assert.Equal(t, 1, primary.flushed)
		assert.Zero(t, watchers.flushed)
	})

	t.Run("failed events are not copied", func(t *testing.T) {
		watchers := &recordingPublisher{failAfter: -1}
		m := Mirror{Primary: &recordingPublisher{failAfter: 0}, Copy: watchers}

		_, err := m.Publish(ctx, "note_events", sampleEvent(t, model.ActionCreate, "a"))
		require.Error(t, err)
		assert.Empty(t, watchers.published)
	})

	t.Run("disabled channel still feeds the watchers", func(t *testing.T) {
		watchers := &recordingPublisher{failAfter: -1}
		m := Mirror{Primary: Discard{}, Copy: watchers}

		_, err := m.Publish(ctx, "note_events", sampleEvent(t, model.ActionDelete, "a"))
		assert.ErrorIs(t, err, ErrDisabled)
		assert.Len(t, watchers.published, 1)
	})
}
