package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"notes-sync-service/internal/app"
)

func newPingCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity of the search index, cache and event channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				return ping(ctx, cmd, a.HealthChecks())
			})
		},
	}
}

func ping(ctx context.Context, cmd *cobra.Command, checks map[string]func(context.Context) error) error {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []error
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s FAIL %v\n", name, err)
			failed = append(failed, fmt.Errorf("%s: %w", name, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s OK\n", name)
	}
	return errors.Join(failed...)
}
