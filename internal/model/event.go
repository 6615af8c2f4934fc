package model

import (
	"fmt"
	"time"
)

// Action тип изменения заметки
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid проверяет, что действие входит в допустимый набор
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// ChangeEvent неизменяемая запись об одной закоммиченной мутации заметки.
// Для create/update содержит снимок после коммита, для delete - последнее известное состояние.
// Порядок полей фиксирован и определяет порядок ключей в JSON на проводе.
type ChangeEvent struct {
	Action    Action    `json:"action"`
	Note      Note      `json:"note"`
	EmittedAt time.Time `json:"emitted_at"`
}

// NewChangeEvent создает событие для закоммиченной заметки
func NewChangeEvent(action Action, note Note, emittedAt time.Time) (ChangeEvent, error) {
	if !action.Valid() {
		return ChangeEvent{}, fmt.Errorf("unknown action %q", action)
	}
	if note.ID == "" {
		return ChangeEvent{}, fmt.Errorf("%s event requires note id", action)
	}
	return ChangeEvent{
		Action:    action,
		Note:      note,
		EmittedAt: emittedAt.UTC(),
	}, nil
}

// NoteID возвращает идентификатор заметки, к которой относится событие
func (e ChangeEvent) NoteID() string {
	return e.Note.ID
}

// Version версия снимка для last-writer-wins
func (e ChangeEvent) Version() int64 {
	return e.Note.Version()
}
