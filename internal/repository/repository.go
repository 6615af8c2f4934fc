package repository

import (
	"context"
	"errors"
	"time"

	"notes-sync-service/internal/model"
)

// ErrNoteNotFound возвращается, когда заметка не найдена
var ErrNoteNotFound = errors.New("note not found")

// ErrConflict заметка изменена другим запросом после чтения
var ErrConflict = errors.New("note was modified concurrently")

// NoteRepository интерфейс для работы с заметками в хранилище.
// Хранилище синхронно и является единственным источником истины.
type NoteRepository interface {
	// Create создает новую заметку и возвращает созданную заметку с ID
	Create(ctx context.Context, note model.Note) (model.Note, error)

	// GetByID возвращает заметку по её ID
	GetByID(ctx context.Context, id string) (model.Note, error)

	// List возвращает список всех заметок, новые первыми
	List(ctx context.Context) ([]model.Note, error)

	// Update обновляет заметку, только если её updated_at в хранилище равен expected.
	// Иначе ErrConflict, для отсутствующей заметки ErrNoteNotFound.
	Update(ctx context.Context, note model.Note, expected time.Time) (model.Note, error)

	// Delete удаляет заметку по ID
	Delete(ctx context.Context, id string) error
}
