// Package cache read-through кэш списка и карточек заметок.
// Кэш никогда не является источником истины: ошибки бэкенда логируются и считаются промахом.
package cache

import (
	"context"
	"time"
)

const (
	// ListKey ключ списка заметок
	ListKey = "notes_list"
	// DefaultTTL время жизни записи, страховка на случай потерянной инвалидации
	DefaultTTL = 5 * time.Minute
)

// NoteKey ключ карточки заметки
func NoteKey(id string) string {
	return "note_" + id
}

// Cache хранилище сериализованных ответов
type Cache interface {
	// Get возвращает запись и true, либо false при промахе или ошибке бэкенда
	Get(ctx context.Context, key string) ([]byte, bool)
	// Put сохраняет запись с истечением через ttl, перезаписывая существующую
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration)
	// Invalidate удаляет запись. Удаление отсутствующей записи - no-op.
	Invalidate(ctx context.Context, key string)
}

var _ Cache = Nop{}

// Nop кэш, который ничего не хранит
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Nop) Put(context.Context, string, []byte, time.Duration) {}
func (Nop) Invalidate(context.Context, string)                 {}
