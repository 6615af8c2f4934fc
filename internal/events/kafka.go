package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"notes-sync-service/internal/model"
)

var _ Publisher = (*Connection)(nil)

// Writer часть kafka.Writer, которая нужна соединению
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProbeFunc проверяет доступность брокера по адресу bootstrap
type ProbeFunc func(ctx context.Context, bootstrap string) error

// Config параметры подключения и отправки
type Config struct {
	ConnectRetries    int           // число попыток подключения
	ConnectRetryDelay time.Duration // пауза между попытками подключения
	PublishTimeout    time.Duration // таймаут одной попытки отправки (и одной попытки подключения)
	PublishRetries    int           // число повторных отправок после первой неудачной
	PublishBackoff    time.Duration // пауза между повторными отправками
}

// DefaultConfig значения по умолчанию
func DefaultConfig() Config {
	return Config{
		ConnectRetries:    5,
		ConnectRetryDelay: 5 * time.Second,
		PublishTimeout:    10 * time.Second,
		PublishRetries:    3,
		PublishBackoff:    time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = def.ConnectRetries
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = def.PublishTimeout
	}
	if c.PublishRetries < 0 {
		c.PublishRetries = 0
	}
	return c
}

// Option настраивает Connection
type Option func(*Connection)

// WithLogger задает логгер
func WithLogger(l *zap.Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProbe подменяет проверку доступности брокера
func WithProbe(p ProbeFunc) Option {
	return func(c *Connection) {
		c.probe = p
	}
}

// WithWriter подменяет kafka.Writer
func WithWriter(w Writer) Option {
	return func(c *Connection) {
		c.writer = w
	}
}

// Connection владеет соединением с Kafka. Один экземпляр разделяется между всеми запросами,
// Publish безопасен для конкурентного вызова (kafka.Writer синхронизирован внутри).
type Connection struct {
	bootstrap string
	cfg       Config
	writer    Writer
	probe     ProbeFunc
	logger    *zap.Logger

	mu       sync.Mutex
	closed   bool
	seq      uint64
	inflight map[uint64]chan struct{} // отправки в работе, канал закрывается по завершении
}

// Connect подключается к брокеру с фиксированным числом попыток.
// После исчерпания попыток возвращает *ConnectError, соединение при этом не создается.
func Connect(ctx context.Context, bootstrap string, cfg Config, opts ...Option) (*Connection, error) {
	c := &Connection{
		bootstrap: bootstrap,
		cfg:       cfg.withDefaults(),
		probe:     probeBroker,
		logger:    zap.NewNop(),
		inflight:  make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	retryer := FixedDelay{Delay: c.cfg.ConnectRetryDelay, MaxAttempts: c.cfg.ConnectRetries}
	attempts, err := Retry(ctx, retryer, func(ctx context.Context, attempt int) error {
		c.logger.Info("connecting to event channel",
			zap.String("bootstrap", bootstrap),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.ConnectRetries))

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
		defer cancel()
		return c.probe(attemptCtx, bootstrap)
	}, func(attempt int, err error) {
		c.logger.Warn("event channel connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", c.cfg.ConnectRetryDelay),
			zap.Error(err))
	})
	if err != nil {
		c.logger.Error("exceeded event channel connection attempts",
			zap.String("bootstrap", bootstrap),
			zap.Int("attempts", attempts))
		return nil, &ConnectError{Address: bootstrap, Attempts: attempts, Err: err}
	}

	if c.writer == nil {
		c.writer = newKafkaWriter(bootstrap, c.cfg)
	}

	c.logger.Info("event channel connection established", zap.String("bootstrap", bootstrap))
	return c, nil
}

// Publish отправляет событие в topic. Ключ сообщения - id заметки, поэтому все события
// одной заметки попадают в одну партицию и читаются по порядку.
func (c *Connection) Publish(ctx context.Context, topic string, event model.ChangeEvent) (Ack, error) {
	key := event.NoteID()

	value, err := Encode(event)
	if err != nil {
		return Ack{}, &PublishError{Topic: topic, Key: key, Err: err}
	}

	id, ok := c.begin()
	if !ok {
		return Ack{}, &PublishError{Topic: topic, Key: key, Err: ErrClosed}
	}
	defer c.done(id)

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  event.EmittedAt,
	}

	retryer := FixedDelay{Delay: c.cfg.PublishBackoff, MaxAttempts: c.cfg.PublishRetries + 1}
	attempts, err := Retry(ctx, retryer, func(ctx context.Context, attempt int) error {
		sendCtx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
		defer cancel()
		return c.writer.WriteMessages(sendCtx, msg)
	}, func(attempt int, err error) {
		c.logger.Warn("event publish attempt failed",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Error(err))
	})
	if err != nil {
		return Ack{}, &PublishError{Topic: topic, Key: key, Attempts: attempts, Err: err}
	}

	c.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.String("action", string(event.Action)))

	return Ack{Topic: topic, Key: key, Attempts: attempts, AckedAt: time.Now()}, nil
}

// Flush ждет завершения отправок, принятых до вызова. Отправки, начатые позже, не ждет.
func (c *Connection) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := make([]chan struct{}, 0, len(c.inflight))
	for _, ch := range c.inflight {
		pending = append(pending, ch)
	}
	c.mu.Unlock()

	for _, ch := range pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close перестает принимать отправки, дожидается текущих и закрывает writer. Повторный вызов - no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.Flush(context.Background())

	if c.writer == nil {
		return nil
	}
	return c.writer.Close()
}

func (c *Connection) begin() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, false
	}
	c.seq++
	c.inflight[c.seq] = make(chan struct{})
	return c.seq, true
}

func (c *Connection) done(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	close(c.inflight[id])
	delete(c.inflight, id)
}

// SplitBootstrap разбирает список брокеров "host1:9092,host2:9092"
func SplitBootstrap(bootstrap string) []string {
	var addrs []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

func newKafkaWriter(bootstrap string, cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(SplitBootstrap(bootstrap)...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            1, // повторы делает Connection.Publish
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.PublishTimeout,
		AllowAutoTopicCreation: true,
	}
}

// probeBroker открывает соединение с первым доступным брокером и запрашивает метаданные кластера
func probeBroker(ctx context.Context, bootstrap string) error {
	addrs := SplitBootstrap(bootstrap)
	if len(addrs) == 0 {
		return errors.New("empty bootstrap address")
	}

	var lastErr error
	for _, addr := range addrs {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}

		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return lastErr
}
