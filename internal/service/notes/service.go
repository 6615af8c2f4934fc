package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"notes-sync-service/internal/cache"
	"notes-sync-service/internal/events"
	"notes-sync-service/internal/logger"
	"notes-sync-service/internal/metrics"
	"notes-sync-service/internal/model"
	"notes-sync-service/internal/repository"
	"notes-sync-service/internal/search"
	svc "notes-sync-service/internal/service"
)

var _ svc.NoteService = (*Service)(nil)

// Options настройки координатора мутаций
type Options struct {
	Topic    string        // топик событий, по умолчанию note_events
	CacheTTL time.Duration // по умолчанию cache.DefaultTTL
	// Async публикует события в фоне: ответ клиенту не ждет брокера
	Async bool
	// OnPublishFailure вызывается один раз для события, не дошедшего до брокера
	OnPublishFailure events.FailureHook
	Index            search.Index
	Logger           *zap.Logger
	Metrics          *metrics.Metrics
	Now              func() time.Time
}

// Service координатор мутаций: сохранение, затем публикация события, затем инвалидация кэша
type Service struct {
	repo      repository.NoteRepository
	publisher events.Publisher
	cache     cache.Cache
	opts      Options
	logger    *zap.Logger

	pending sync.WaitGroup
}

// NewNoteService создает новый экземпляр сервиса для работы с заметками
func NewNoteService(repo repository.NoteRepository, publisher events.Publisher, c cache.Cache, opts Options) *Service {
	if opts.Topic == "" {
		opts.Topic = "note_events"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if publisher == nil {
		publisher = events.Discard{}
	}
	if c == nil {
		c = cache.Nop{}
	}

	return &Service{
		repo:      repo,
		publisher: publisher,
		cache:     c,
		opts:      opts,
		logger:    logger.OrNop(opts.Logger),
	}
}

// Create создает новую заметку
func (s *Service) Create(ctx context.Context, payload model.NotePayload) (model.Note, error) {
	if err := payload.Validate(false); err != nil {
		return model.Note{}, err
	}

	now := s.now()
	note := model.Note{
		Title:     strings.TrimSpace(*payload.Title),
		Content:   *payload.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.Create(ctx, note)
	if err != nil {
		return model.Note{}, fmt.Errorf("create note: %w", err)
	}

	s.emit(ctx, model.ActionCreate, created)
	s.invalidate(ctx, cache.ListKey)

	return created, nil
}

// Get возвращает заметку по её ID
func (s *Service) Get(ctx context.Context, id string) (model.Note, error) {
	if id == "" {
		return model.Note{}, &model.ValidationError{Field: "id", Reason: "is required"}
	}

	key := cache.NoteKey(id)
	var note model.Note
	if s.cached(ctx, key, &note) {
		return note, nil
	}

	note, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Note{}, err
	}

	s.store(ctx, key, note)
	return note, nil
}

// List возвращает список всех заметок
func (s *Service) List(ctx context.Context) ([]model.Note, error) {
	var notes []model.Note
	if s.cached(ctx, cache.ListKey, &notes) {
		return notes, nil
	}

	notes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	s.store(ctx, cache.ListKey, notes)
	return notes, nil
}

// maxUpdateAttempts попыток compare-and-set при конкурентных обновлениях одной заметки
const maxUpdateAttempts = 5

// Update обновляет заметку с указанным ID.
// Чтение, слияние и запись повторяются, если заметку успел изменить другой запрос:
// так каждое обновление получает свой updated_at, строго больший предыдущего.
func (s *Service) Update(ctx context.Context, id string, payload model.NotePayload, partial bool) (model.Note, error) {
	if id == "" {
		return model.Note{}, &model.ValidationError{Field: "id", Reason: "is required"}
	}
	if err := payload.Validate(partial); err != nil {
		return model.Note{}, err
	}

	var (
		updated model.Note
		err     error
	)
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		updated, err = s.update(ctx, id, payload)
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
		s.logger.Debug("concurrent note update, retrying",
			zap.String("note_id", id),
			zap.Int("attempt", attempt))
	}
	if err != nil {
		return model.Note{}, err
	}

	s.emit(ctx, model.ActionUpdate, updated)
	s.invalidate(ctx, cache.ListKey, cache.NoteKey(id))

	return updated, nil
}

func (s *Service) update(ctx context.Context, id string, payload model.NotePayload) (model.Note, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Note{}, err
	}
	expected := existing.UpdatedAt

	if payload.Title != nil {
		existing.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Content != nil {
		existing.Content = *payload.Content
	}
	if err := existing.Validate(); err != nil {
		return model.Note{}, err
	}

	existing.UpdatedAt = s.after(expected)

	return s.repo.Update(ctx, existing, expected)
}

// Delete удаляет заметку по ID. Событие несет последнее состояние заметки
// и публикуется только после успешного удаления из хранилища.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &model.ValidationError{Field: "id", Reason: "is required"}
	}

	snapshot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.emit(ctx, model.ActionDelete, snapshot)
	s.invalidate(ctx, cache.ListKey, cache.NoteKey(id))

	return nil
}

// Search ищет заметки в поисковом индексе
func (s *Service) Search(ctx context.Context, query string, limit int) ([]search.Document, error) {
	if s.opts.Index == nil {
		return nil, svc.ErrSearchDisabled
	}
	return s.opts.Index.Search(ctx, query, limit)
}

// Close дожидается фоновых публикаций
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit публикует событие закоммиченной мутации. Ошибка публикации не отменяет мутацию.
func (s *Service) emit(ctx context.Context, action model.Action, note model.Note) {
	event, err := model.NewChangeEvent(action, note, s.now())
	if err != nil {
		s.logger.Error("cannot build change event", zap.String("action", string(action)), zap.Error(err))
		return
	}

	// Мутация уже закоммичена, отмена запроса клиентом не должна прерывать публикацию
	ctx = context.WithoutCancel(ctx)

	if !s.opts.Async {
		s.publish(ctx, event)
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.publish(ctx, event)
	}()
}

func (s *Service) publish(ctx context.Context, event model.ChangeEvent) {
	action := string(event.Action)

	_, err := s.publisher.Publish(ctx, s.opts.Topic, event)
	if err == nil {
		err = s.publisher.Flush(ctx)
	}

	switch {
	case err == nil:
		s.opts.Metrics.EventPublished(action)
	case errors.Is(err, events.ErrDisabled):
		s.opts.Metrics.EventSkipped(action)
		s.logger.Debug("eventing disabled, change event skipped",
			zap.String("action", action),
			zap.String("note_id", event.NoteID()))
	default:
		s.opts.Metrics.PublishFailed(action)
		s.logger.Error("change event not delivered",
			zap.String("action", action),
			zap.String("note_id", event.NoteID()),
			zap.Error(err))
		if s.opts.OnPublishFailure != nil {
			s.opts.OnPublishFailure(ctx, event, err)
		}
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		s.cache.Invalidate(ctx, key)
	}
}

// cached читает и разбирает запись кэша. Испорченная запись удаляется и считается промахом.
func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	payload, ok := s.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		s.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		s.cache.Invalidate(ctx, key)
		return false
	}
	return true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cannot encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	s.cache.Put(ctx, key, payload, s.opts.CacheTTL)
}

// now текущее время в UTC с точностью хранилища (микросекунды)
func (s *Service) now() time.Time {
	return s.opts.Now().UTC().Truncate(time.Microsecond)
}

// after возвращает текущее время, но строго позже prev
func (s *Service) after(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
