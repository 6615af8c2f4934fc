package main

import (
	"context"

	"github.com/spf13/cobra"

	"notes-sync-service/internal/app"
)

func newProjectCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "project",
		Short: "Run the index projector as a consumer group member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				consumer, err := a.NewConsumer()
				if err != nil {
					return err
				}
				defer consumer.Close()

				return a.NewProjector().Run(ctx, consumer)
			})
		},
	}
}
