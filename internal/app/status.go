package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/ctwgo/internal/ctxlog"
	"github.com/vk/ctwgo/internal/engine"
)

// statusReport is the body of GET /status.
type statusReport struct {
	Classes      int64 `json:"classes"`
	Methods      int64 `json:"methods"`
	LimitReached bool  `json:"limit_reached"`
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func statusHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c := eng.Counters()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statusReport{
			Classes:      c.Classes(),
			Methods:      c.Methods(),
			LimitReached: c.LimitReached(),
		})
	}
}

// startStatusServer serves /health and /status for the duration of a run.
func (a *App) startStatusServer(ctx context.Context, port int, eng *engine.Engine) *http.Server {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring status server.")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/status", statusHandler(eng))

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
	return srv
}

func (a *App) stopStatusServer(ctx context.Context, srv *http.Server) {
	logger := ctxlog.FromContext(ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Status server shutdown failed", "error", err)
		return
	}
	logger.Debug("Status server shut down gracefully.")
}
