package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notes-sync-service/internal/config"
	"notes-sync-service/internal/events"
	"notes-sync-service/internal/events/inmem"
	"notes-sync-service/internal/model"
)

func strPtr(s string) *string { return &s }

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	cfg.Channel.Driver = "memory"
	cfg.Cache.Driver = "memory"
	cfg.Search.Driver = "memory"
	return cfg
}

func unreachable(ctx context.Context, bootstrap string, _ events.Config, _ ...events.Option) (*events.Connection, error) {
	return nil, &events.ConnectError{Address: bootstrap, Attempts: 5, Err: errors.New("connection refused")}
}

func TestNew_MemoryDrivers(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.IsType(t, &inmem.Broker{}, a.Channel)
	assert.NotNil(t, a.Watch)

	checks := a.HealthChecks()
	require.Contains(t, checks, "search")
	assert.NoError(t, checks["search"](context.Background()))
	assert.NoError(t, checks["channel"](context.Background()))
	assert.NotContains(t, checks, "cache")
}

func TestNew_SQLiteStorage(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = "file::memory:"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	note, err := a.Service.Create(context.Background(), model.NotePayload{Title: strPtr("t"), Content: strPtr("c")})
	require.NoError(t, err)

	got, err := a.Repo.GetByID(context.Background(), note.ID)
	require.NoError(t, err)
	assert.Equal(t, note, got)
}

func TestNew_ConnectFailurePolicy(t *testing.T) {
	t.Run("fail", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Channel.Driver = "kafka"
		cfg.Channel.OnConnectFailure = "fail"

		_, err := New(context.Background(), cfg, nil, WithConnect(unreachable))
		var cErr *events.ConnectError
		assert.ErrorAs(t, err, &cErr)
	})

	t.Run("degrade", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Channel.Driver = "kafka"
		cfg.Channel.OnConnectFailure = "degrade"

		a, err := New(context.Background(), cfg, nil, WithConnect(unreachable))
		require.NoError(t, err)
		defer a.Close(context.Background())

		assert.Equal(t, events.Discard{}, a.Channel)
		assert.Error(t, a.HealthChecks()["channel"](context.Background()))

		_, err = a.NewConsumer()
		assert.Error(t, err)

		// мутации работают, события пропускаются и не копятся в очереди
		_, err = a.Service.Create(context.Background(), model.NotePayload{Title: strPtr("t"), Content: strPtr("c")})
		require.NoError(t, err)
		assert.Zero(t, a.Queue.Len())
	})
}

func TestApp_InProcessProjection(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	consumer, err := a.NewConsumer()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.NewProjector().Run(ctx, consumer) }()

	note, err := a.Service.Create(context.Background(), model.NotePayload{Title: strPtr("Kafka"), Content: strPtr("c")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		docs, err := a.Service.Search(context.Background(), "kafka", 10)
		return err == nil && len(docs) == 1 && docs[0].ID == note.ID
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestApp_Redeliver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Channel.SubscriberBuffer = 1

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	consumer, err := a.NewConsumer()
	require.NoError(t, err)

	// буфер подписчика на одно событие: второе упирается в backpressure и уходит в очередь
	for i := 0; i < 2; i++ {
		_, err := a.Service.Create(context.Background(), model.NotePayload{Title: strPtr("t"), Content: strPtr("c")})
		require.NoError(t, err)
	}
	require.Equal(t, 1, a.Queue.Len())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = consumer.Fetch(ctx)
	require.NoError(t, err)

	a.Redeliver(context.Background())
	assert.Zero(t, a.Queue.Len())

	msg, err := consumer.Fetch(ctx)
	require.NoError(t, err)
	ev, err := events.Decode(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, model.ActionCreate, ev.Action)
}

func TestApp_StartRedelivery(t *testing.T) {
	cfg := memoryConfig()
	cfg.Channel.RedeliverySchedule = "not a schedule"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	_, err = a.StartRedelivery(context.Background())
	assert.Error(t, err)

	a.Config.Channel.RedeliverySchedule = "@every 1h"
	c, err := a.StartRedelivery(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}

func TestEventsConfig(t *testing.T) {
	got := EventsConfig(config.Default().Channel)
	assert.Equal(t, events.DefaultConfig(), got)

	cfg := config.Default().Channel
	zero := 0
	cfg.PublishRetries = &zero
	cfg.PublishBackoffMS = &zero
	got = EventsConfig(cfg)
	assert.Equal(t, 0, got.PublishRetries)
	assert.Equal(t, time.Duration(0), got.PublishBackoff)
}
