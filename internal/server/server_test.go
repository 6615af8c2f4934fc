package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"notes-sync-service/internal/config"
)

func TestServer_Lifecycle(t *testing.T) {
	srv, err := NewServer(config.ConfigServer{GracefulShutdownTimeout: 5}, nil)
	require.NoError(t, err)

	streamDone := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stream" {
			w.WriteHeader(http.StatusOK)
			http.NewResponseController(w).Flush()
			<-r.Context().Done()
			close(streamDone)
			return
		}
		_, _ = io.WriteString(w, "ok")
	})
	srv.Initialize(grpc.NewServer(), handler)
	errs := srv.Start()

	resp, err := http.Get("http://" + srv.HTTPAddr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+srv.HTTPAddr+"/stream", nil)
	streamResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer streamResp.Body.Close()

	// открытый поток не должен задерживать shutdown: его контекст наследует s.Ctx
	require.NoError(t, srv.Shutdown())

	select {
	case <-streamDone:
	case <-time.After(time.Second):
		t.Fatal("stream handler did not observe shutdown")
	}

	select {
	case err := <-errs:
		t.Fatalf("unexpected server error: %v", err)
	default:
	}
}
