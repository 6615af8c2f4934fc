package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	grpcapi "notes-sync-service/internal/api/grpc"
	httpapi "notes-sync-service/internal/api/http"
	"notes-sync-service/internal/app"
	"notes-sync-service/internal/events/inmem"
	"notes-sync-service/internal/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run gRPC and HTTP API",
		Long: "Runs the API with the mutation coordinator and failed event redelivery.\n" +
			"With channel.driver=memory the index projector runs in the same process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, serve)
		},
	}
}

func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config
	l := a.Logger

	srv, err := server.NewServer(cfg.Server, l)
	if err != nil {
		return err
	}

	handler := grpcapi.NewHandler(a.Service, a.Watch, cfg.Channel.Topic, srv.Ctx, l)
	grpcServer := grpcapi.NewServer(handler, grpcapi.ServerOptions{AuthToken: cfg.Server.AuthToken, Logger: l})

	router, err := httpapi.NewRouter(httpapi.Options{
		Service:   a.Service,
		Watch:     a.Watch,
		Topic:     cfg.Channel.Topic,
		ServerCtx: srv.Ctx,
		Gatherer:  a.Registry,
		Health:    a.HealthChecks(),
		AuthToken: cfg.Server.AuthToken,
		Config:    cfg.HTTP,
		Logger:    l,
	})
	if err != nil {
		return err
	}
	srv.Initialize(grpcServer, router)

	redelivery, err := a.StartRedelivery(srv.Ctx)
	if err != nil {
		return err
	}
	defer func() { <-redelivery.Stop().Done() }()

	var wg sync.WaitGroup
	defer wg.Wait()

	// Канал в памяти: проектор читает тот же брокер в этом процессе
	if _, inProcess := a.Channel.(*inmem.Broker); inProcess {
		consumer, err := a.NewConsumer()
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer consumer.Close()
			if err := a.NewProjector().Run(srv.Ctx, consumer); err != nil {
				l.Error("index projector stopped with error", zap.Error(err))
			}
		}()
	}

	errChan := srv.Start()

	select {
	case err := <-errChan:
		_ = srv.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		l.Info("received shutdown signal")
	}

	if err := srv.Shutdown(); err != nil {
		l.Warn("graceful shutdown incomplete", zap.Error(err))
	}
	l.Info("notes service stopped")
	return nil
}
