package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"notes-sync-service/internal/converter"
	"notes-sync-service/internal/events"
)

// watchNotes GET /api/notes/watch: поток событий в формате NDJSON, по строке на событие.
// Через WebSocket каждая строка приходит отдельным сообщением (wsproxy).
func (h *notesHandler) watchNotes(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if h.watch == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "watch is not configured"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.serverCtx, cancel)
	defer stop()

	sub := h.watch.Subscribe(h.topic)
	defer sub.Close()

	rc := http.NewResponseController(w)
	// Иначе server.ReadTimeout оборвет поток: истекший дедлайн чтения отменяет контекст запроса
	_ = rc.SetReadDeadline(time.Time{})

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	send := func(ev converter.Event) bool {
		if err := enc.Encode(ev); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send(converter.SubscribedEvent(time.Now())) {
		return
	}

	for {
		msg, err := sub.Fetch(ctx)
		if err != nil {
			return
		}

		ev, err := events.Decode(msg.Value)
		if err != nil {
			h.logger.Warn("skipping undecodable watch event", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		if !send(converter.EventToDTO(ev)) {
			return
		}
	}
}
