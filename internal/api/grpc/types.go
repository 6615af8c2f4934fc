package grpc

import (
	"notes-sync-service/internal/converter"
)

type CreateNoteRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

type CreateNoteResponse struct {
	Note converter.Note `json:"note"`
}

type GetNoteRequest struct {
	ID string `json:"id" validate:"required"`
}

type GetNoteResponse struct {
	Note converter.Note `json:"note"`
}

type ListNotesRequest struct{}

type ListNotesResponse struct {
	Notes []converter.Note `json:"notes"`
}

// UpdateNoteRequest при Partial=true изменяются только переданные поля
type UpdateNoteRequest struct {
	ID      string  `json:"id" validate:"required"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Partial bool    `json:"partial,omitempty"`
}

type UpdateNoteResponse struct {
	Note converter.Note `json:"note"`
}

type DeleteNoteRequest struct {
	ID string `json:"id" validate:"required"`
}

type DeleteNoteResponse struct{}

type SearchNotesRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

type SearchNotesResponse struct {
	Hits []converter.SearchHit `json:"hits"`
}

type WatchNotesRequest struct{}

// NoteEvent сообщение потока WatchNotes. Первое сообщение потока имеет Action "subscribed".
type NoteEvent = converter.Event

// ActionSubscribed приветственное сообщение потока WatchNotes
const ActionSubscribed = converter.ActionSubscribed
