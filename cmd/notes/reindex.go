package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"notes-sync-service/internal/app"
)

func newReindexCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Project every stored note into the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				notes, err := a.Repo.List(ctx)
				if err != nil {
					return err
				}

				applied, err := a.NewProjector().Reindex(ctx, notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d of %d notes\n", applied, len(notes))
				return nil
			})
		},
	}
}
