// Package httpapi REST поверхность сервиса заметок: /api/notes в стиле исходного DRF роутера,
// поток изменений /api/notes/watch (NDJSON, через WebSocket тоже), /metrics и /healthz.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tmc/grpc-websocket-proxy/wsproxy"
	"go.uber.org/zap"

	"notes-sync-service/internal/api/http/middleware"
	"notes-sync-service/internal/config"
	"notes-sync-service/internal/events/inmem"
	"notes-sync-service/internal/logger"
	svc "notes-sync-service/internal/service"
)

// HealthFunc проверка готовности зависимости для /healthz
type HealthFunc = func(ctx context.Context) error

// Options зависимости HTTP API
type Options struct {
	Service svc.NoteService
	// Watch локальная копия канала событий для /api/notes/watch, может быть nil
	Watch *inmem.Broker
	Topic string
	// ServerCtx отменяется при shutdown, после этого открытые потоки завершаются
	ServerCtx context.Context
	Gatherer  prometheus.Gatherer
	Health    map[string]HealthFunc
	AuthToken string
	Config    config.ConfigHTTP
	Logger    *zap.Logger
}

// NewRouter собирает маршруты и цепочку middleware:
// wsproxy -> CORS -> logging -> rate limit -> trailing slash -> auth -> маршруты
func NewRouter(opts Options) (http.Handler, error) {
	if opts.ServerCtx == nil {
		opts.ServerCtx = context.Background()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	l := logger.OrNop(opts.Logger)

	h := &notesHandler{
		svc:       opts.Service,
		watch:     opts.Watch,
		topic:     opts.Topic,
		serverCtx: opts.ServerCtx,
		logger:    l,
	}

	mux := runtime.NewServeMux()
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/api/notes/{id}", h.get},
		{http.MethodPut, "/api/notes/{id}", h.update(false)},
		{http.MethodPatch, "/api/notes/{id}", h.update(true)},
		{http.MethodDelete, "/api/notes/{id}", h.delete},
		{http.MethodGet, "/api/notes", h.list},
		{http.MethodPost, "/api/notes", h.create},
		{http.MethodGet, "/api/notes/search", h.search},
		{http.MethodGet, "/api/notes/watch", h.watchNotes},
		{http.MethodGet, "/healthz", healthz(opts.Health)},
		{http.MethodGet, "/metrics", handle(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}

	var handler http.Handler = mux
	handler = middleware.Auth(handler, opts.AuthToken, "/healthz", "/metrics")
	handler = middleware.TrimTrailingSlash(handler)
	handler = middleware.RateLimit(handler, opts.Config.RateLimitRPS, opts.Config.RateLimitBurst, l)
	handler = middleware.Logging(handler, l)
	handler = middleware.CORS(opts.Config).Handler(handler)
	// WebSocket proxy самый внешний, чтобы корректно обрабатывать upgrade
	handler = wsproxy.WebsocketProxy(handler)

	return handler, nil
}

func handle(h http.Handler) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		h.ServeHTTP(w, r)
	}
}

func healthz(checks map[string]HealthFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		result := make(map[string]string, len(checks))
		code := http.StatusOK
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				result[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		writeJSON(w, code, map[string]any{"status": http.StatusText(code), "checks": result})
	}
}
