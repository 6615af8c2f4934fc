package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"notes-sync-service/internal/converter"
	"notes-sync-service/internal/events/inmem"
	"notes-sync-service/internal/model"
	"notes-sync-service/internal/repository"
	svc "notes-sync-service/internal/service"
)

// maxBodyBytes ограничение тела запроса
const maxBodyBytes = 1 << 20

type notesHandler struct {
	svc       svc.NoteService
	watch     *inmem.Broker
	topic     string
	serverCtx context.Context
	logger    *zap.Logger
}

func (h *notesHandler) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	notes, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, converter.ModelsToDTOs(notes))
}

func (h *notesHandler) create(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var payload model.NotePayload
	if !h.decode(w, r, &payload) {
		return
	}

	note, err := h.svc.Create(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, converter.ModelToDTO(note))
}

func (h *notesHandler) get(w http.ResponseWriter, r *http.Request, params map[string]string) {
	// search и watch не должны читаться как id заметки независимо от порядка маршрутов в mux
	switch params["id"] {
	case "search":
		h.search(w, r, params)
		return
	case "watch":
		h.watchNotes(w, r, params)
		return
	}

	note, err := h.svc.Get(r.Context(), params["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, converter.ModelToDTO(note))
}

func (h *notesHandler) update(partial bool) func(http.ResponseWriter, *http.Request, map[string]string) {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		var payload model.NotePayload
		if !h.decode(w, r, &payload) {
			return
		}

		note, err := h.svc.Update(r.Context(), params["id"], payload, partial)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, converter.ModelToDTO(note))
	}
}

func (h *notesHandler) delete(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := h.svc.Delete(r.Context(), params["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// search GET /api/notes/search?q=...&limit=...
func (h *notesHandler) search(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, &model.ValidationError{Field: "limit", Reason: "is invalid"})
			return
		}
		limit = n
	}

	docs, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, converter.DocumentsToHits(docs))
}

func (h *notesHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error - " + err.Error()})
		return false
	}
	return true
}

// writeError отвечает в формате DRF: {"поле": ["причина"]} для ошибок валидации, {"detail": ...} для остальных
func (h *notesHandler) writeError(w http.ResponseWriter, err error) {
	var vErr *model.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string][]string{vErr.Field: {vErr.Reason}})
	case errors.Is(err, repository.ErrNoteNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	case errors.Is(err, repository.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"detail": err.Error()})
	case errors.Is(err, svc.ErrSearchDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
