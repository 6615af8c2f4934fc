package events

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed возвращается при публикации в закрытое соединение
	ErrClosed = errors.New("event channel connection is closed")
	// ErrDisabled возвращается в деградированном режиме без событий
	ErrDisabled = errors.New("event channel is disabled")
)

// ConnectError канал недоступен после исчерпания всех попыток подключения
type ConnectError struct {
	Address  string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to event channel %s failed after %d attempts: %v", e.Address, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// PublishError событие не было подтверждено брокером после всех повторов
type PublishError struct {
	Topic    string
	Key      string
	Attempts int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s (key %s) failed after %d attempts: %v", e.Topic, e.Key, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
