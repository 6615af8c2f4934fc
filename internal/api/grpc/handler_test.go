package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"

	"notes-sync-service/internal/events/inmem"
	"notes-sync-service/internal/model"
	"notes-sync-service/internal/repository"
	"notes-sync-service/internal/repository/memory"
	"notes-sync-service/internal/search"
	notesService "notes-sync-service/internal/service/notes"
)

const testTopic = "note_events"

func strPtr(s string) *string { return &s }

type testEnv struct {
	client *Client
	watch  *inmem.Broker
	cancel context.CancelFunc
}

// startServer поднимает NotesService поверх bufconn
func startServer(t *testing.T, token string, index search.Index) *testEnv {
	t.Helper()

	watch := inmem.NewBroker(16)
	svc := notesService.NewNoteService(memory.NewRepository(), watch, nil, notesService.Options{
		Topic: testTopic,
		Index: index,
	})

	serverCtx, cancel := context.WithCancel(context.Background())
	handler := NewHandler(svc, watch, testTopic, serverCtx, nil)
	srv := NewServer(handler, ServerOptions{AuthToken: token})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		append(DialOptions(),
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		_ = conn.Close()
		srv.Stop()
	})

	return &testEnv{client: NewClient(conn), watch: watch, cancel: cancel}
}

func TestNotesService_CRUD(t *testing.T) {
	env := startServer(t, "", nil)
	ctx := context.Background()

	created, err := env.client.CreateNote(ctx, &CreateNoteRequest{Title: strPtr("  Title "), Content: strPtr("Body")})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Note.ID)
	assert.Equal(t, "Title", created.Note.Title)

	got, err := env.client.GetNote(ctx, &GetNoteRequest{ID: created.Note.ID})
	require.NoError(t, err)
	assert.Equal(t, created.Note, got.Note)

	updated, err := env.client.UpdateNote(ctx, &UpdateNoteRequest{ID: created.Note.ID, Content: strPtr("New body"), Partial: true})
	require.NoError(t, err)
	assert.Equal(t, "Title", updated.Note.Title)
	assert.Equal(t, "New body", updated.Note.Content)

	list, err := env.client.ListNotes(ctx, &ListNotesRequest{})
	require.NoError(t, err)
	require.Len(t, list.Notes, 1)
	assert.Equal(t, updated.Note, list.Notes[0])

	_, err = env.client.DeleteNote(ctx, &DeleteNoteRequest{ID: created.Note.ID})
	require.NoError(t, err)

	list, err = env.client.ListNotes(ctx, &ListNotesRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Notes)
}

func TestGetNote_NotFoundWithDetails(t *testing.T) {
	env := startServer(t, "", nil)

	_, err := env.client.GetNote(context.Background(), &GetNoteRequest{ID: "non-existent-id"})
	require.Error(t, err)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "note not found", st.Message())

	require.Len(t, st.Details(), 1)
	info, ok := st.Details()[0].(*errdetails.ErrorInfo)
	require.True(t, ok)
	assert.True(t, proto.Equal(&errdetails.ErrorInfo{Reason: "NOTE_NOT_FOUND", Domain: errorDomain}, info))
}

func TestCreateNote_ValidationDetails(t *testing.T) {
	env := startServer(t, "", nil)

	_, err := env.client.CreateNote(context.Background(), &CreateNoteRequest{Title: strPtr("   "), Content: strPtr("c")})
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())

	require.Len(t, st.Details(), 1)
	br, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	require.Len(t, br.GetFieldViolations(), 1)
	assert.Equal(t, "title", br.GetFieldViolations()[0].GetField())
}

func TestGetNote_EmptyIDRejectedByInterceptor(t *testing.T) {
	env := startServer(t, "", nil)

	_, err := env.client.GetNote(context.Background(), &GetNoteRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSearchNotes(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := startServer(t, "", nil)
		_, err := env.client.SearchNotes(context.Background(), &SearchNotesRequest{Query: "x"})
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})

	t.Run("memory index", func(t *testing.T) {
		index := search.NewMemoryIndex()
		created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		note := model.Note{ID: "n1", Title: "Kafka", Content: "events", CreatedAt: created, UpdatedAt: created}
		require.NoError(t, index.Upsert(context.Background(), search.DocumentFromNote(note), note.Version()))

		env := startServer(t, "", index)
		resp, err := env.client.SearchNotes(context.Background(), &SearchNotesRequest{Query: "kafka"})
		require.NoError(t, err)
		require.Len(t, resp.Hits, 1)
		assert.Equal(t, "n1", resp.Hits[0].ID)
	})
}

func TestAuthRequired(t *testing.T) {
	env := startServer(t, "secret", nil)

	_, err := env.client.ListNotes(context.Background(), &ListNotesRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer secret")
	_, err = env.client.ListNotes(ctx, &ListNotesRequest{})
	assert.NoError(t, err)
}

func TestWatchNotes(t *testing.T) {
	env := startServer(t, "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := env.client.WatchNotes(ctx, &WatchNotesRequest{})
	require.NoError(t, err)

	welcome, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, ActionSubscribed, welcome.Action)

	created, err := env.client.CreateNote(ctx, &CreateNoteRequest{Title: strPtr("t"), Content: strPtr("c")})
	require.NoError(t, err)
	_, err = env.client.DeleteNote(ctx, &DeleteNoteRequest{ID: created.Note.ID})
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, string(model.ActionCreate), ev.Action)
	assert.Equal(t, created.Note, ev.Note)

	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, string(model.ActionDelete), ev.Action)
	assert.Equal(t, created.Note.ID, ev.Note.ID)
}

func TestWatchNotes_EndsOnServerShutdown(t *testing.T) {
	env := startServer(t, "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := env.client.WatchNotes(ctx, &WatchNotesRequest{})
	require.NoError(t, err)
	_, err = stream.Recv()
	require.NoError(t, err)

	env.cancel()

	_, err = stream.Recv()
	require.Error(t, err)
	assert.NotEqual(t, codes.DeadlineExceeded, status.Code(err))
}

func TestHandleError_Internal(t *testing.T) {
	h := NewHandler(nil, nil, testTopic, nil, nil)

	err := h.handleError(errors.New("connection refused"))
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal error", st.Message())

	assert.Equal(t, codes.DeadlineExceeded, status.Code(h.handleError(context.DeadlineExceeded)))
	assert.Equal(t, codes.Aborted, status.Code(h.handleError(fmt.Errorf("update: %w", repository.ErrConflict))))
}
