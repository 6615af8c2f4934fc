// Package search поисковый индекс заметок, который поддерживает проектор событий.
package search

import (
	"context"
	"errors"
	"time"

	"notes-sync-service/internal/model"
)

// ErrStale индекс уже содержит более новую версию документа
var ErrStale = errors.New("index holds a newer version")

// Document проекция заметки в индексе
type Document struct {
	ID        string    `json:"-"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentFromNote строит документ из снимка заметки
func DocumentFromNote(n model.Note) Document {
	return Document{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt.UTC(),
	}
}

// Version версия документа в индексе. Value - updated_at заметки в микросекундах.
type Version struct {
	Value   int64
	Deleted bool
}

// Exists документ присутствует в индексе
func (v Version) Exists() bool {
	return v.Value > 0 && !v.Deleted
}

// Index поисковый индекс с внешним версионированием
type Index interface {
	// Version текущая версия документа, нулевая если документа нет
	Version(ctx context.Context, id string) (Version, error)
	// Upsert записывает документ, если version не меньше текущей. Иначе ErrStale.
	// Надгробие той же версии тоже дает ErrStale: удаление побеждает при равенстве.
	Upsert(ctx context.Context, doc Document, version int64) error
	// Delete оставляет надгробие с version, если она не меньше текущей. Отсутствующий документ - не ошибка.
	Delete(ctx context.Context, id string, version int64) error
	// Search полнотекстовый поиск по title и content
	Search(ctx context.Context, query string, limit int) ([]Document, error)
	Ping(ctx context.Context) error
}
