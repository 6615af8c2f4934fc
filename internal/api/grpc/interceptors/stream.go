package interceptors

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// wrappedServerStream считает сообщения стрима и логирует ошибки отправки
type wrappedServerStream struct {
	grpc.ServerStream

	logger *zap.Logger
	sent   int
	recv   int
}

func (w *wrappedServerStream) RecvMsg(m interface{}) error {
	err := w.ServerStream.RecvMsg(m)
	if err == nil {
		w.recv++
		return nil
	}
	if !errors.Is(err, io.EOF) {
		w.logger.Debug("stream recv failed", zap.Error(err))
	}
	return err
}

func (w *wrappedServerStream) SendMsg(m interface{}) error {
	err := w.ServerStream.SendMsg(m)
	if err != nil {
		w.logger.Debug("stream send failed", zap.String("type", fmt.Sprintf("%T", m)), zap.Error(err))
		return err
	}
	w.sent++
	return nil
}

// StreamLogger логирует открытие и завершение стримов
func StreamLogger(l *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		log := l.With(zap.String("method", info.FullMethod))
		log.Info("stream opened")

		start := time.Now()
		wrapped := &wrappedServerStream{ServerStream: ss, logger: log}
		err := handler(srv, wrapped)

		fields := []zap.Field{
			zap.String("code", status.Code(err).String()),
			zap.Int("sent", wrapped.sent),
			zap.Int("received", wrapped.recv),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Warn("stream failed", append(fields, zap.Error(err))...)
		} else {
			log.Info("stream closed", fields...)
		}
		return err
	}
}
