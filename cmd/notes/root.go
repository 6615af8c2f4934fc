package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notes-sync-service/internal/app"
	"notes-sync-service/internal/config"
	"notes-sync-service/internal/logger"
)

const defaultConfigFile = "config.yml"

type rootFlags struct {
	config string
}

func newRootCmd() *cobra.Command {
	flags := new(rootFlags)

	root := &cobra.Command{
		Use:           "notes",
		Short:         "Notes service with change propagation to cache and search index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.config, "config", "c", defaultConfigFile, "path to config file")

	root.AddCommand(
		newServeCmd(flags),
		newProjectCmd(flags),
		newReindexCmd(flags),
		newPingCmd(flags),
		newWatchCmd(),
	)
	return root
}

// bootstrap читает конфигурацию и строит логгер
func bootstrap(flags *rootFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", flags.config, err)
	}
	l, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

// withApp собирает приложение и закрывает его после run
func withApp(cmd *cobra.Command, flags *rootFlags, run func(ctx context.Context, a *app.App) error) error {
	cfg, l, err := bootstrap(flags)
	if err != nil {
		return err
	}
	defer l.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Channel.PublishTimeout())
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			l.Warn("close failed", zap.Error(err))
		}
	}()

	return run(ctx, a)
}
