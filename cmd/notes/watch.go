package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	grpcapi "notes-sync-service/internal/api/grpc"
)

type watchFlags struct {
	address string
	token   string
}

func newWatchCmd() *cobra.Command {
	flags := new(watchFlags)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream note changes from a running server over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.address, "address", "a", envOr("SERVER_ADDRESS", "localhost:50051"), "gRPC server address")
	cmd.Flags().StringVarP(&flags.token, "token", "t", os.Getenv("AUTH_TOKEN"), "bearer token")
	return cmd
}

func watch(ctx context.Context, out io.Writer, flags *watchFlags) error {
	conn, err := grpc.NewClient(flags.address,
		append(grpcapi.DialOptions(), grpc.WithTransportCredentials(insecure.NewCredentials()))...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer conn.Close()

	if flags.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+flags.token)
	}

	stream, err := grpcapi.NewClient(conn).WatchNotes(ctx, &grpcapi.WatchNotesRequest{})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive event: %w", err)
		}

		if ev.Action == grpcapi.ActionSubscribed {
			fmt.Fprintf(out, "subscribed at %s\n", ev.EmittedAt)
			continue
		}
		fmt.Fprintf(out, "%s %-6s %s %q\n", ev.EmittedAt, ev.Action, ev.Note.ID, ev.Note.Title)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
