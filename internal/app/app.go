// Package app контейнер зависимостей: хранилище, кэш, индекс, канал событий и координатор мутаций,
// собранные из конфигурации. Используется всеми подкомандами cmd/notes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"notes-sync-service/internal/cache"
	"notes-sync-service/internal/config"
	"notes-sync-service/internal/events"
	"notes-sync-service/internal/events/inmem"
	"notes-sync-service/internal/logger"
	"notes-sync-service/internal/metrics"
	"notes-sync-service/internal/projector"
	"notes-sync-service/internal/repository"
	"notes-sync-service/internal/repository/memory"
	"notes-sync-service/internal/repository/relational"
	"notes-sync-service/internal/search"
	notesService "notes-sync-service/internal/service/notes"
)

// App контейнер приложения
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Repo  repository.NoteRepository
	Cache cache.Cache
	Index search.Index

	// Channel канал событий: *events.Connection, *inmem.Broker или events.Discard в деградированном режиме
	Channel events.Publisher
	// Publisher то, во что публикует координатор: Channel с копией в Watch
	Publisher events.Publisher
	// Watch локальный брокер подписчиков WatchNotes и /api/notes/watch
	Watch *inmem.Broker
	Queue *events.RetryQueue

	Service *notesService.Service

	closers []io.Closer
}

// ConnectFunc подключение к Kafka, подменяется в тестах
type ConnectFunc func(ctx context.Context, bootstrap string, cfg events.Config, opts ...events.Option) (*events.Connection, error)

// Option настраивает App
type Option func(*buildOptions)

type buildOptions struct {
	connect ConnectFunc
}

// WithConnect подменяет подключение к Kafka
func WithConnect(fn ConnectFunc) Option {
	return func(o *buildOptions) {
		o.connect = fn
	}
}

// New собирает приложение из конфигурации. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, l *zap.Logger, opts ...Option) (_ *App, err error) {
	bo := buildOptions{connect: events.Connect}
	for _, opt := range opts {
		opt(&bo)
	}

	l = logger.OrNop(l)
	a := &App{
		Config:   cfg,
		Logger:   l,
		Registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	if a.Repo, err = a.openRepository(); err != nil {
		return nil, err
	}
	if a.Index, err = a.openIndex(ctx); err != nil {
		return nil, err
	}
	a.Cache = cache.WithMetrics(a.openCache(), a.Metrics)

	if a.Channel, err = a.openChannel(ctx, bo.connect); err != nil {
		return nil, err
	}

	a.Watch = inmem.NewBroker(cfg.Channel.SubscriberBuffer)
	a.Publisher = events.Mirror{Primary: a.Channel, Copy: a.Watch}
	a.Queue = events.NewRetryQueue(cfg.Channel.RedeliveryCapacity, l, a.Metrics)

	a.Service = notesService.NewNoteService(a.Repo, a.Publisher, a.Cache, notesService.Options{
		Topic:            cfg.Channel.Topic,
		CacheTTL:         cfg.Cache.TTL(),
		Async:            cfg.Channel.Async,
		OnPublishFailure: a.Queue.Hook,
		Index:            a.Index,
		Logger:           l,
		Metrics:          a.Metrics,
	})

	return a, nil
}

func (a *App) openRepository() (repository.NoteRepository, error) {
	cfg := a.Config.Storage
	if cfg.Driver == "memory" {
		a.Logger.Info("initialized in-memory repository")
		return memory.NewRepository(), nil
	}

	db, err := relational.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB: %w", err)
	}
	a.closers = append(a.closers, sqlDB)

	repo, err := relational.NewRepository(db)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("initialized relational repository", zap.String("driver", cfg.Driver))
	return repo, nil
}

func (a *App) openCache() cache.Cache {
	cfg := a.Config.Cache
	switch cfg.Driver {
	case "redis":
		rc := cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			TTL:      cfg.TTL(),
		}, a.Logger)
		a.closers = append(a.closers, rc)
		a.Logger.Info("initialized redis cache", zap.String("addr", cfg.Addr))
		return rc
	case "none":
		return cache.Nop{}
	default:
		return cache.NewMemoryCache(cfg.Capacity, cfg.TTL())
	}
}

func (a *App) openIndex(ctx context.Context) (search.Index, error) {
	cfg := a.Config.Search
	if cfg.Driver != "elastic" {
		return search.NewMemoryIndex(), nil
	}

	idx, err := search.NewElasticIndex(search.ElasticOptions{
		Addresses: cfg.AddressList(),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Index:     cfg.Index,
	}, a.Logger)
	if err != nil {
		return nil, err
	}
	// Недоступный Elasticsearch не мешает API: индекс догонит проектор
	if err := idx.EnsureIndex(ctx); err != nil {
		a.Logger.Warn("cannot ensure search index", zap.String("index", cfg.Index), zap.Error(err))
	}
	return idx, nil
}

// openChannel подключает канал событий. При on_connect_failure=degrade недоступный брокер
// переводит сервис в режим без событий вместо ошибки запуска.
func (a *App) openChannel(ctx context.Context, connect ConnectFunc) (events.Publisher, error) {
	cfg := a.Config.Channel
	if cfg.Driver == "memory" {
		return inmem.NewBroker(cfg.SubscriberBuffer), nil
	}

	conn, err := connect(ctx, cfg.Bootstrap, EventsConfig(cfg), events.WithLogger(a.Logger))
	if err != nil {
		var cErr *events.ConnectError
		if cfg.OnConnectFailure == "degrade" && errors.As(err, &cErr) {
			a.Logger.Warn("event channel unavailable, running without change events", zap.Error(err))
			return events.Discard{}, nil
		}
		return nil, err
	}
	a.closers = append(a.closers, conn)
	return conn, nil
}

// EventsConfig переводит секцию channel в параметры клиента
func EventsConfig(cfg config.ConfigChannel) events.Config {
	return events.Config{
		ConnectRetries:    cfg.ConnectRetries,
		ConnectRetryDelay: cfg.ConnectRetryDelay(),
		PublishTimeout:    cfg.PublishTimeout(),
		PublishRetries:    cfg.PublishRetryCount(),
		PublishBackoff:    cfg.PublishBackoff(),
	}
}

// NewConsumer потребитель событий для проектора.
// Для канала в памяти это подписка на тот же брокер, в который публикует координатор.
func (a *App) NewConsumer() (events.Consumer, error) {
	switch ch := a.Channel.(type) {
	case *inmem.Broker:
		return ch.Subscribe(a.Config.Channel.Topic), nil
	case *events.Connection:
		cfg := a.Config.Channel
		return events.NewKafkaConsumer(cfg.Bootstrap, cfg.GroupID, cfg.Topic), nil
	default:
		return nil, fmt.Errorf("event channel is not available")
	}
}

// NewProjector проектор в индекс приложения
func (a *App) NewProjector() *projector.Projector {
	return projector.New(a.Index,
		projector.WithLogger(a.Logger),
		projector.WithMetrics(a.Metrics),
		projector.WithRetryWait(a.Config.Channel.ProjectorRetryWait()))
}

// Close дожидается фоновых публикаций и закрывает ресурсы в обратном порядке
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Service != nil {
		if err := a.Service.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait pending events: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
