package interceptors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type getRequest struct {
	ID string `json:"id" validate:"required"`
}

var info = &grpc.UnaryServerInfo{FullMethod: "/notes.v1.NotesService/GetNote"}

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		header   string
		wantCode codes.Code
	}{
		{name: "disabled", token: "", header: "", wantCode: codes.OK},
		{name: "valid token", token: "secret", header: "Bearer secret", wantCode: codes.OK},
		{name: "missing header", token: "secret", header: "", wantCode: codes.Unauthenticated},
		{name: "wrong scheme", token: "secret", header: "Basic secret", wantCode: codes.Unauthenticated},
		{name: "wrong token", token: "secret", header: "Bearer nope", wantCode: codes.Unauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
			if tt.header != "" {
				ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs(authorizationHeader, tt.header))
			}

			_, err := Auth(tt.token)(ctx, &getRequest{ID: "1"}, info, okHandler)
			assert.Equal(t, tt.wantCode, status.Code(err))
		})
	}
}

func TestValidate(t *testing.T) {
	interceptor := Validate()

	resp, err := interceptor(context.Background(), &getRequest{ID: "1"}, info, okHandler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = interceptor(context.Background(), &getRequest{}, info, okHandler)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())

	require.Len(t, st.Details(), 1)
	br, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	assert.Equal(t, "id", br.GetFieldViolations()[0].GetField())
}

func TestValidate_SkipsNonStructRequests(t *testing.T) {
	_, err := Validate()(context.Background(), "plain", info, okHandler)
	assert.NoError(t, err)
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	interceptor := Logger(zap.New(core))

	_, err := interceptor(context.Background(), &getRequest{ID: "1"}, info, okHandler)
	require.NoError(t, err)

	_, err = interceptor(context.Background(), &getRequest{ID: "1"}, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "note not found")
	})
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "grpc request", entries[0].Message)
	assert.Equal(t, "OK", entries[0].ContextMap()["code"])
	assert.Equal(t, "grpc request failed", entries[1].Message)
	assert.Equal(t, "NotFound", entries[1].ContextMap()["code"])
}
