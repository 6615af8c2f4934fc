package service

import (
	"context"
	"errors"

	"notes-sync-service/internal/model"
	"notes-sync-service/internal/search"
)

// ErrSearchDisabled поисковый индекс не подключен к сервису
var ErrSearchDisabled = errors.New("search is not configured")

// NoteService интерфейс для бизнес-логики работы с заметками
type NoteService interface {
	// Create проверяет payload, сохраняет заметку и публикует событие create
	Create(ctx context.Context, payload model.NotePayload) (model.Note, error)

	// Get возвращает заметку по её ID (через кэш)
	Get(ctx context.Context, id string) (model.Note, error)

	// List возвращает список всех заметок, новые первыми (через кэш)
	List(ctx context.Context) ([]model.Note, error)

	// Update изменяет заметку. При partial=true меняются только переданные поля.
	Update(ctx context.Context, id string, payload model.NotePayload, partial bool) (model.Note, error)

	// Delete удаляет заметку по ID и публикует событие delete с последним состоянием
	Delete(ctx context.Context, id string) error

	// Search полнотекстовый поиск по проекции в индексе
	Search(ctx context.Context, query string, limit int) ([]search.Document, error)
}
