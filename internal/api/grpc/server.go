package grpc

import (
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"notes-sync-service/internal/api/grpc/interceptors"
	"notes-sync-service/internal/logger"
)

// ServerOptions параметры gRPC сервера
type ServerOptions struct {
	AuthToken string
	Logger    *zap.Logger
}

// NewServer создает gRPC сервер с интерцепторами и регистрирует NotesService
func NewServer(handler NotesServiceServer, opts ServerOptions) *grpc.Server {
	l := logger.OrNop(opts.Logger)

	// Порядок интерцепторов важен:
	// 1. Logger - логирует все запросы (включая заблокированные)
	// 2. Auth - блокирует неавторизованные запросы
	// 3. Validate - проверяет теги validate у сообщений запроса
	grpcServer := grpc.NewServer(
		grpc.ForceServerCodec(Codec),
		grpc.MaxConcurrentStreams(25),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     30 * time.Minute,
			MaxConnectionAge:      1 * time.Hour,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  10 * time.Minute,
			Timeout:               20 * time.Second,
		}),
		grpc.ChainUnaryInterceptor(
			interceptors.Logger(l),
			interceptors.Auth(opts.AuthToken),
			interceptors.Validate(),
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamLogger(l),
			interceptors.StreamAuth(opts.AuthToken),
		),
	)

	RegisterNotesServiceServer(grpcServer, handler)
	l.Info("registered grpc service", zap.String("service", ServiceName))

	return grpcServer
}
