package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/ctwgo/internal/backend"
	"github.com/vk/ctwgo/internal/backend/sim"
)

// newAgent serves the compiler-control protocol on top of a simulated
// compiler.
func newAgent(t *testing.T, compiler backend.Backend, infoStatus int) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	decode := func(r *http.Request, v any) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(v))
	}
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/info", func(w http.ResponseWriter, r *http.Request) {
		if infoStatus != http.StatusOK {
			w.WriteHeader(infoStatus)
			return
		}
		info, _ := compiler.Check(ctx)
		reply(w, info)
	})
	mux.HandleFunc("POST /v1/compilable", func(w http.ResponseWriter, r *http.Request) {
		var req methodRequest
		decode(r, &req)
		ok, _ := compiler.IsCompilable(ctx, req.Method, req.Level)
		reply(w, boolResponse{ok})
	})
	mux.HandleFunc("POST /v1/enqueue", func(w http.ResponseWriter, r *http.Request) {
		var req methodRequest
		decode(r, &req)
		ok, err := compiler.Enqueue(ctx, req.Method, req.Level)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		reply(w, boolResponse{ok})
	})
	mux.HandleFunc("POST /v1/queued", func(w http.ResponseWriter, r *http.Request) {
		var req methodRequest
		decode(r, &req)
		q, _ := compiler.IsQueued(ctx, req.Method)
		reply(w, boolResponse{q})
	})
	mux.HandleFunc("POST /v1/level", func(w http.ResponseWriter, r *http.Request) {
		var req methodRequest
		decode(r, &req)
		l, _ := compiler.Level(ctx, req.Method)
		reply(w, levelResponse{l})
	})
	mux.HandleFunc("POST /v1/deoptimize", func(w http.ResponseWriter, r *http.Request) {
		var req methodRequest
		decode(r, &req)
		compiler.Deoptimize(ctx, req.Method)
	})
	mux.HandleFunc("POST /v1/deoptimize-all", func(w http.ResponseWriter, r *http.Request) {
		compiler.DeoptimizeAll(ctx)
	})
	mux.HandleFunc("POST /v1/initializer", func(w http.ResponseWriter, r *http.Request) {
		var req initializerRequest
		decode(r, &req)
		compiler.EnqueueInitializer(ctx, req.Class, req.Level)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrip(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	compiler := sim.New(sim.Options{})
	srv := newAgent(t, compiler, http.StatusOK)
	client := New(srv.URL, 5*time.Second)
	defer client.Close()
	ctx := context.Background()
	m := backend.Method{Class: "p.A", Name: "run", Descriptor: "()V"}

	// --- Act / Assert ---
	info, err := client.Check(ctx)
	require.NoError(t, err)
	require.True(t, info.Available)
	require.Equal(t, 4, info.MaxLevel)

	ok, err := client.IsCompilable(ctx, m, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.Enqueue(ctx, m, 3)
	require.NoError(t, err)
	require.True(t, ok)

	queued, err := client.IsQueued(ctx, m)
	require.NoError(t, err)
	require.False(t, queued)

	level, err := client.Level(ctx, m)
	require.NoError(t, err)
	require.Equal(t, 3, level)

	require.NoError(t, client.Deoptimize(ctx, m))
	level, err = client.Level(ctx, m)
	require.NoError(t, err)
	require.Zero(t, level)

	require.NoError(t, client.EnqueueInitializer(ctx, "p.A", 1))
	require.NoError(t, client.DeoptimizeAll(ctx))
	require.Equal(t, sim.Stats{Enqueued: 1, Initializers: 1, DeoptimizeAll: 1}, compiler.Stats())
}

func TestClient_CheckStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, backend.ErrNoManagement},
		{http.StatusNotImplemented, backend.ErrProfileUnsupported},
	}
	for _, tt := range tests {
		srv := newAgent(t, sim.New(sim.Options{}), tt.status)
		client := New(srv.URL, time.Second)
		_, err := client.Check(context.Background())
		require.True(t, errors.Is(err, tt.want), "status %d: got %v", tt.status, err)
		client.Close()
	}
}

func TestClient_EnqueueErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := newAgent(t, sim.New(sim.Options{FailOn: regexp.MustCompile(`^bad\.`)}), http.StatusOK)
	client := New(srv.URL, time.Second)
	defer client.Close()

	_, err := client.Enqueue(context.Background(), backend.Method{Class: "bad.X", Name: "m", Descriptor: "()V"}, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bailed out")
}
