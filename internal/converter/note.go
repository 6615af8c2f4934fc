// Package converter переводит доменные модели в DTO транспортного слоя и обратно
package converter

import (
	"time"

	"notes-sync-service/internal/model"
	"notes-sync-service/internal/search"
)

// Note представление заметки в API. Временные метки в RFC 3339 с микросекундами.
type Note struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// SearchHit результат поиска
type SearchHit struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Event сообщение потока изменений для подписчиков API
type Event struct {
	Action    string `json:"action"`
	Note      Note   `json:"note"`
	EmittedAt string `json:"emitted_at,omitempty"`
}

// ActionSubscribed первое сообщение потока: подписка оформлена, дальше идут события
const ActionSubscribed = "subscribed"

const timeLayout = time.RFC3339Nano

// DTOToModel конвертирует DTO в domain модель. Некорректные метки становятся нулевыми.
func DTOToModel(dto Note) model.Note {
	return model.Note{
		ID:        dto.ID,
		Title:     dto.Title,
		Content:   dto.Content,
		CreatedAt: parseTime(dto.CreatedAt),
		UpdatedAt: parseTime(dto.UpdatedAt),
	}
}

// ModelToDTO конвертирует domain модель Note в DTO
func ModelToDTO(note model.Note) Note {
	return Note{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: formatTime(note.CreatedAt),
		UpdatedAt: formatTime(note.UpdatedAt),
	}
}

// ModelsToDTOs конвертирует слайс domain моделей. Пустой список остается пустым массивом, а не null.
func ModelsToDTOs(notes []model.Note) []Note {
	dtos := make([]Note, len(notes))
	for i, note := range notes {
		dtos[i] = ModelToDTO(note)
	}
	return dtos
}

// DocumentsToHits конвертирует документы поискового индекса
func DocumentsToHits(docs []search.Document) []SearchHit {
	hits := make([]SearchHit, len(docs))
	for i, d := range docs {
		hits[i] = SearchHit{
			ID:        d.ID,
			Title:     d.Title,
			Content:   d.Content,
			CreatedAt: formatTime(d.CreatedAt),
		}
	}
	return hits
}

// EventToDTO конвертирует событие канала в сообщение потока
func EventToDTO(ev model.ChangeEvent) Event {
	return Event{
		Action:    string(ev.Action),
		Note:      ModelToDTO(ev.Note),
		EmittedAt: formatTime(ev.EmittedAt),
	}
}

// SubscribedEvent приветственное сообщение потока
func SubscribedEvent(now time.Time) Event {
	return Event{Action: ActionSubscribed, EmittedAt: formatTime(now)}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
