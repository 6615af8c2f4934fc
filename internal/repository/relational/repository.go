// Package relational реализует NoteRepository поверх реляционной БД через gorm.
// Поддерживаемые драйверы: sqlite (pure Go), postgres, mysql.
package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notes-sync-service/internal/model"
	"notes-sync-service/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ repository.NoteRepository = (*repo)(nil)

// noteRecord строка таблицы notes. Временные метки выставляет сервис,
// поэтому автоматическое заполнение gorm отключено.
type noteRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Title     string    `gorm:"size:255;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index;precision:6;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;precision:6;autoUpdateTime:false"`
}

func (noteRecord) TableName() string {
	return "notes"
}

type repo struct {
	db *gorm.DB
}

// Open открывает соединение с БД выбранного драйвера
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm.Open(%s): %w", driver, err)
	}

	// sqlite в памяти живет в рамках одного соединения
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// NewRepository создает репозиторий и приводит схему таблицы notes к актуальной
func NewRepository(db *gorm.DB) (repository.NoteRepository, error) {
	if err := db.AutoMigrate(&noteRecord{}); err != nil {
		return nil, fmt.Errorf("db.AutoMigrate: %w", err)
	}
	return &repo{db: db}, nil
}

// Create создает новую заметку и возвращает созданную заметку с ID
func (r *repo) Create(ctx context.Context, note model.Note) (model.Note, error) {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = note.CreatedAt
	}

	rec := toRecord(note)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return model.Note{}, fmt.Errorf("create note: %w", err)
	}

	return toModel(rec), nil
}

// GetByID возвращает заметку по её ID
func (r *repo) GetByID(ctx context.Context, id string) (model.Note, error) {
	var rec noteRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Note{}, repository.ErrNoteNotFound
	}
	if err != nil {
		return model.Note{}, fmt.Errorf("get note %s: %w", id, err)
	}

	return toModel(rec), nil
}

// List возвращает список всех заметок, новые первыми
func (r *repo) List(ctx context.Context) ([]model.Note, error) {
	var recs []noteRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	notes := make([]model.Note, 0, len(recs))
	for _, rec := range recs {
		notes = append(notes, toModel(rec))
	}

	return notes, nil
}

// Update обновляет title, content и updated_at заметки.
// Условие на прежний updated_at делает запись compare-and-set: параллельный писатель получит ErrConflict.
func (r *repo) Update(ctx context.Context, note model.Note, expected time.Time) (model.Note, error) {
	var updated noteRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", note.ID).First(&updated).Error; err != nil {
			return err
		}
		if !updated.UpdatedAt.Equal(expected) {
			return repository.ErrConflict
		}

		if note.UpdatedAt.IsZero() {
			note.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		}

		updated.Title = note.Title
		updated.Content = note.Content
		updated.UpdatedAt = note.UpdatedAt

		res := tx.Model(&noteRecord{}).
			Where("id = ? AND updated_at = ?", note.ID, expected.UTC()).
			Updates(map[string]interface{}{
				"title":      updated.Title,
				"content":    updated.Content,
				"updated_at": updated.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrConflict
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Note{}, repository.ErrNoteNotFound
	}
	if errors.Is(err, repository.ErrConflict) {
		return model.Note{}, err
	}
	if err != nil {
		return model.Note{}, fmt.Errorf("update note %s: %w", note.ID, err)
	}

	return toModel(updated), nil
}

// Delete удаляет заметку по ID
func (r *repo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&noteRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete note %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNoteNotFound
	}

	return nil
}

func toRecord(note model.Note) noteRecord {
	return noteRecord{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt.UTC(),
		UpdatedAt: note.UpdatedAt.UTC(),
	}
}

func toModel(rec noteRecord) model.Note {
	return model.Note{
		ID:        rec.ID,
		Title:     rec.Title,
		Content:   rec.Content,
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
}
