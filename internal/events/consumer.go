package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message сообщение из канала событий
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte

	raw kafka.Message
}

// Consumer читает сообщения канала с подтверждением обработки (at-least-once)
type Consumer interface {
	// Fetch блокируется до следующего сообщения или отмены контекста
	Fetch(ctx context.Context) (Message, error)
	// Commit подтверждает обработку сообщения
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// Reader часть kafka.Reader, которая нужна потребителю
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ Consumer = (*KafkaConsumer)(nil)

// KafkaConsumer участник consumer group. Сообщения внутри партиции приходят по порядку,
// коммит явный и выполняется только после успешной обработки.
type KafkaConsumer struct {
	reader Reader
}

// NewKafkaConsumer создает потребителя topic в группе groupID
func NewKafkaConsumer(bootstrap, groupID, topic string) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     SplitBootstrap(bootstrap),
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10 << 20,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})
	return NewConsumerFromReader(reader)
}

// NewConsumerFromReader оборачивает готовый Reader
func NewConsumerFromReader(reader Reader) *KafkaConsumer {
	return &KafkaConsumer{reader: reader}
}

func (c *KafkaConsumer) Fetch(ctx context.Context) (Message, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		raw:       m,
	}, nil
}

func (c *KafkaConsumer) Commit(ctx context.Context, msg Message) error {
	return c.reader.CommitMessages(ctx, msg.raw)
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
