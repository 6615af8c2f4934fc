package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-sync-service/internal/config"
	"notes-sync-service/internal/converter"
	"notes-sync-service/internal/events/inmem"
	"notes-sync-service/internal/metrics"
	"notes-sync-service/internal/model"
	"notes-sync-service/internal/repository/memory"
	"notes-sync-service/internal/search"
	notesService "notes-sync-service/internal/service/notes"
)

const testTopic = "note_events"

type env struct {
	server *httptest.Server
	index  *search.MemoryIndex
	cancel context.CancelFunc
}

func newEnv(t *testing.T, token string, health map[string]HealthFunc) *env {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	watch := inmem.NewBroker(16)
	index := search.NewMemoryIndex()
	svc := notesService.NewNoteService(memory.NewRepository(), watch, nil, notesService.Options{
		Topic:   testTopic,
		Index:   index,
		Metrics: m,
	})

	serverCtx, cancel := context.WithCancel(context.Background())
	handler, err := NewRouter(Options{
		Service:   svc,
		Watch:     watch,
		Topic:     testTopic,
		ServerCtx: serverCtx,
		Gatherer:  reg,
		Health:    health,
		AuthToken: token,
		Config:    config.ConfigHTTP{CORSAllowedOrigins: "*", RateLimitRPS: 1000, RateLimitBurst: 1000},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &env{server: srv, index: index, cancel: cancel}
}

func (e *env) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestNotesAPI_CRUD(t *testing.T) {
	e := newEnv(t, "", nil)

	resp, body := e.do(t, http.MethodPost, "/api/notes/", `{"title":" First ","content":"Body"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created converter.Note
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "First", created.Title)
	assert.NotEmpty(t, created.ID)

	resp, body = e.do(t, http.MethodGet, "/api/notes/"+created.ID+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got converter.Note
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, created, got)

	resp, body = e.do(t, http.MethodPatch, "/api/notes/"+created.ID+"/", `{"content":"Patched"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var patched converter.Note
	require.NoError(t, json.Unmarshal(body, &patched))
	assert.Equal(t, "First", patched.Title)
	assert.Equal(t, "Patched", patched.Content)

	resp, body = e.do(t, http.MethodPut, "/api/notes/"+created.ID, `{"title":"Only title"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"content":["is required"]}`, string(body))

	resp, body = e.do(t, http.MethodGet, "/api/notes", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []converter.Note
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, patched, list[0])

	resp, _ = e.do(t, http.MethodDelete, "/api/notes/"+created.ID+"/", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/api/notes/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Not found."}`, string(body))

	resp, body = e.do(t, http.MethodGet, "/api/notes/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestNotesAPI_BadJSON(t *testing.T) {
	e := newEnv(t, "", nil)

	resp, body := e.do(t, http.MethodPost, "/api/notes", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "JSON parse error")
}

func TestNotesAPI_Search(t *testing.T) {
	e := newEnv(t, "", nil)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	note := model.Note{ID: "n1", Title: "Kafka notes", Content: "c", CreatedAt: created, UpdatedAt: created}
	require.NoError(t, e.index.Upsert(context.Background(), search.DocumentFromNote(note), note.Version()))

	resp, body := e.do(t, http.MethodGet, "/api/notes/search/?q=kafka", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hits []converter.SearchHit
	require.NoError(t, json.Unmarshal(body, &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "n1", hits[0].ID)

	resp, _ = e.do(t, http.MethodGet, "/api/notes/search?q=kafka&limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotesAPI_Watch(t *testing.T) {
	e := newEnv(t, "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.server.URL+"/api/notes/watch", nil)
	require.NoError(t, err)
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	dec := json.NewDecoder(resp.Body)
	var ev converter.Event
	require.NoError(t, dec.Decode(&ev))
	assert.Equal(t, converter.ActionSubscribed, ev.Action)

	r, body := e.do(t, http.MethodPost, "/api/notes", `{"title":"t","content":"c"}`)
	require.Equal(t, http.StatusCreated, r.StatusCode)
	var created converter.Note
	require.NoError(t, json.Unmarshal(body, &created))

	require.NoError(t, dec.Decode(&ev))
	assert.Equal(t, "create", ev.Action)
	assert.Equal(t, created, ev.Note)

	// после отмены контекста сервера поток завершается
	e.cancel()
	assert.Error(t, dec.Decode(&ev))
}

func TestNotesAPI_Auth(t *testing.T) {
	e := newEnv(t, "secret", nil)

	resp, _ := e.do(t, http.MethodGet, "/api/notes", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthzAndMetrics(t *testing.T) {
	e := newEnv(t, "", map[string]HealthFunc{
		"search":  func(context.Context) error { return nil },
		"channel": func(context.Context) error { return errors.New("broker down") },
	})

	resp, body := e.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"Service Unavailable","checks":{"search":"ok","channel":"broker down"}}`, string(body))

	r, _ := e.do(t, http.MethodPost, "/api/notes", `{"title":"t","content":"c"}`)
	require.Equal(t, http.StatusCreated, r.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "notes_events_published_total")
}
