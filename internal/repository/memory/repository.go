package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"notes-sync-service/internal/model"
	"notes-sync-service/internal/repository"

	"github.com/google/uuid"
)

var _ repository.NoteRepository = (*repo)(nil)

type repo struct {
	mu    sync.RWMutex
	notes map[string]model.Note
}

// NewRepository создает новый экземпляр in-memory репозитория на основе map
func NewRepository() repository.NoteRepository {
	return &repo{
		notes: make(map[string]model.Note),
	}
}

// Create создает новую заметку и возвращает созданную заметку с ID
func (r *repo) Create(ctx context.Context, note model.Note) (model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Генерируем UUID если не передан
	if note.ID == "" {
		note.ID = uuid.New().String()
	}

	// Временные метки выставляет сервис, здесь только страховка для прямых вызовов
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = note.CreatedAt
	}

	r.notes[note.ID] = note

	return note, nil
}

// GetByID возвращает заметку по её ID
func (r *repo) GetByID(ctx context.Context, id string) (model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, exists := r.notes[id]
	if !exists {
		return model.Note{}, repository.ErrNoteNotFound
	}

	return note, nil
}

// List возвращает список всех заметок, отсортированный по дате создания (новые первыми)
func (r *repo) List(ctx context.Context) ([]model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := make([]model.Note, 0, len(r.notes))
	for _, note := range r.notes {
		notes = append(notes, note)
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})

	return notes, nil
}

// Update обновляет заметку, если с момента чтения её никто не изменил
func (r *repo) Update(ctx context.Context, note model.Note, expected time.Time) (model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.notes[note.ID]
	if !exists {
		return model.Note{}, repository.ErrNoteNotFound
	}
	if !existing.UpdatedAt.Equal(expected) {
		return model.Note{}, repository.ErrConflict
	}

	// created_at неизменяем
	note.CreatedAt = existing.CreatedAt
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	r.notes[note.ID] = note

	return note, nil
}

// Delete удаляет заметку по ID
func (r *repo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[id]; !exists {
		return repository.ErrNoteNotFound
	}

	delete(r.notes, id)

	return nil
}
