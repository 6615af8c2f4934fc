package model

import (
	"time"
)

// MaxTitleLength ограничение длины заголовка (в символах, не в байтах)
const MaxTitleLength = 255

// Note представляет заметку (доменная модель)
// Авторитетная копия живет только в хранилище, кэш и поисковый индекс держат проекции
type Note struct {
	ID        string    `json:"id"`         // UUID заметки, неизменяем после создания
	Title     string    `json:"title"`      // Заголовок заметки
	Content   string    `json:"content"`    // Содержание заметки
	CreatedAt time.Time `json:"created_at"` // Дата создания, выставляется один раз
	UpdatedAt time.Time `json:"updated_at"` // Дата последнего успешного изменения
}

// Validate проверяет валидность заметки
func (n *Note) Validate() error {
	return validateStruct(noteFields{Title: n.Title, Content: n.Content})
}

// IsEmpty проверяет, пуста ли заметка
func (n *Note) IsEmpty() bool {
	return n.ID == "" && n.Title == "" && n.Content == ""
}

// Version возвращает монотонную версию заметки для last-writer-wins сравнения в проекциях
func (n *Note) Version() int64 {
	return n.UpdatedAt.UnixMicro()
}

// NotePayload данные, присланные клиентом для создания или изменения заметки.
// nil поле означает "не передано" (важно для частичного обновления).
type NotePayload struct {
	Title   *string `json:"title,omitempty" validate:"omitnil,notblank,max=255"`
	Content *string `json:"content,omitempty" validate:"omitnil,notblank"`
}

// Validate проверяет payload. При partial=false оба поля обязательны,
// при partial=true проверяются только переданные поля.
func (p NotePayload) Validate(partial bool) error {
	if !partial {
		if p.Title == nil {
			return &ValidationError{Field: "title", Reason: "is required"}
		}
		if p.Content == nil {
			return &ValidationError{Field: "content", Reason: "is required"}
		}
	}
	return validateStruct(p)
}

// noteFields используется для проверки итогового состояния заметки после слияния с payload
type noteFields struct {
	Title   string `json:"title" validate:"notblank,max=255"`
	Content string `json:"content" validate:"notblank"`
}
