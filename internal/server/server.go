package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"notes-sync-service/internal/config"
	"notes-sync-service/internal/logger"
)

// Server владеет listener'ами gRPC и HTTP и их graceful shutdown
type Server struct {
	HTTPServer *http.Server
	HTTPAddr   string

	GRPCServer *grpc.Server
	GRPCAddr   string

	grpcListener net.Listener
	httpListener net.Listener

	// Контекст сервера для graceful shutdown стримов.
	// Отменяется при shutdown: стримы (WatchNotes, /api/notes/watch) слушают его и завершаются.
	Ctx    context.Context
	Cancel context.CancelFunc

	Config config.ConfigServer
	logger *zap.Logger
}

// NewServer открывает listener'ы на портах из конфигурации.
// Порт 0 означает случайный свободный порт (используется в тестах).
func NewServer(cfg config.ConfigServer, l *zap.Logger) (*Server, error) {
	l = logger.OrNop(l)

	grpcListener, err := net.Listen("tcp", "0.0.0.0:"+strconv.Itoa(cfg.PortGRPC))
	if err != nil {
		return nil, fmt.Errorf("failed to listen grpc port %d: %w", cfg.PortGRPC, err)
	}
	httpListener, err := net.Listen("tcp", "0.0.0.0:"+strconv.Itoa(cfg.PortHTTP))
	if err != nil {
		_ = grpcListener.Close()
		return nil, fmt.Errorf("failed to listen http port %d: %w", cfg.PortHTTP, err)
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())

	return &Server{
		GRPCAddr:     grpcListener.Addr().String(),
		HTTPAddr:     httpListener.Addr().String(),
		grpcListener: grpcListener,
		httpListener: httpListener,
		Ctx:          serverCtx,
		Cancel:       serverCancel,
		Config:       cfg,
		logger:       l,
	}, nil
}

// Initialize подключает gRPC сервер и HTTP обработчик, собранные поверх s.Ctx
func (s *Server) Initialize(grpcServer *grpc.Server, handler http.Handler) {
	s.GRPCServer = grpcServer
	s.HTTPServer = &http.Server{
		Handler:           handler,
		ReadTimeout:       seconds(s.Config.HTTPReadTimeout),
		ReadHeaderTimeout: seconds(s.Config.HTTPReadHeaderTimeout),
		// WriteTimeout не задаем: ответы /api/notes/watch длятся сколько угодно
		IdleTimeout: seconds(s.Config.HTTPIdleTimeout),
		BaseContext: func(net.Listener) context.Context { return s.Ctx },
	}
}

// Start запускает gRPC и HTTP серверы в горутинах.
// Возвращает канал ошибок для отслеживания ошибок серверов.
func (s *Server) Start() <-chan error {
	errChan := make(chan error, 2)

	go func() {
		s.logger.Info("grpc server listening", zap.String("addr", s.GRPCAddr))
		if err := s.GRPCServer.Serve(s.grpcListener); err != nil {
			errChan <- fmt.Errorf("grpc server error: %w", err)
		}
	}()

	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.HTTPAddr))
		if err := s.HTTPServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	return errChan
}

// Shutdown выполняет graceful shutdown сервера
func (s *Server) Shutdown() error {
	s.logger.Info("starting graceful shutdown")

	// Отменяем контекст сервера ПЕРЕД GracefulStop: стримы сами не завершатся,
	// GracefulStop ждал бы их до таймаута
	s.Cancel()

	timeout := seconds(s.Config.GracefulShutdownTimeout)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var httpErr error
	if s.HTTPServer != nil {
		if httpErr = s.HTTPServer.Shutdown(ctx); httpErr != nil {
			s.logger.Warn("http server shutdown failed", zap.Error(httpErr))
		}
	}

	if s.GRPCServer == nil {
		return httpErr
	}

	stopped := make(chan struct{})
	go func() {
		s.GRPCServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("grpc server stopped gracefully")
		return httpErr
	case <-ctx.Done():
		s.logger.Warn("graceful shutdown timeout, forcing stop")
		s.GRPCServer.Stop()
		return ctx.Err()
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
