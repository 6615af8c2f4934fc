package events

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-sync-service/internal/metrics"
	"notes-sync-service/internal/model"
)

// recordingPublisher принимает события, пока failAfter не исчерпан (отрицательный - без ошибок)
type recordingPublisher struct {
	failAfter int
	published []model.ChangeEvent
	flushed   int
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event model.ChangeEvent) (Ack, error) {
	if p.failAfter >= 0 && len(p.published) >= p.failAfter {
		return Ack{}, &PublishError{Topic: topic, Key: event.NoteID(), Attempts: 1, Err: errors.New("down")}
	}
	p.published = append(p.published, event)
	return Ack{Topic: topic, Key: event.NoteID(), Attempts: 1}, nil
}

func (p *recordingPublisher) Flush(context.Context) error {
	p.flushed++
	return nil
}

func TestRetryQueue_RedeliverInOrder(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	q := NewRetryQueue(10, nil, m)

	for _, id := range []string{"a", "b", "c"} {
		q.Hook(context.Background(), sampleEvent(t, model.ActionUpdate, id), errors.New("down"))
	}
	assert.Equal(t, 3, q.Len())

	p := &recordingPublisher{failAfter: -1}
	sent, err := q.Redeliver(context.Background(), "note_events", p)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, p.flushed)

	var ids []string
	for _, ev := range p.published {
		ids = append(ids, ev.NoteID())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsRedelivered))
}

func TestRetryQueue_StopsAtFirstFailure(t *testing.T) {
	q := NewRetryQueue(10, nil, nil)
	for _, id := range []string{"a", "b", "c"} {
		q.Hook(context.Background(), sampleEvent(t, model.ActionUpdate, id), nil)
	}

	p := &recordingPublisher{failAfter: 1}
	sent, err := q.Redeliver(context.Background(), "note_events", p)
	require.Error(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, q.Len())

	p.failAfter = -1
	sent, err = q.Redeliver(context.Background(), "note_events", p)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, "b", p.published[1].NoteID())
}

func TestRetryQueue_DropsOldestWhenFull(t *testing.T) {
	q := NewRetryQueue(2, nil, nil)
	for _, id := range []string{"a", "b", "c"} {
		q.Hook(context.Background(), sampleEvent(t, model.ActionCreate, id), nil)
	}
	assert.Equal(t, 2, q.Len())

	p := &recordingPublisher{failAfter: -1}
	_, err := q.Redeliver(context.Background(), "note_events", p)
	require.NoError(t, err)
	require.Len(t, p.published, 2)
	assert.Equal(t, "b", p.published[0].NoteID())
	assert.Equal(t, "c", p.published[1].NoteID())
}
