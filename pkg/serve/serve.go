// Package serve implements the HTTP remote entry point: the same engine
// configuration as the in-process path, reached through the serialization
// boundary. Requests arrive as plain-data wire encodings and events leave
// as an NDJSON stream.
package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raulpineda/wirecheck/pkg/engine"
	"github.com/raulpineda/wirecheck/pkg/executor"
	"github.com/raulpineda/wirecheck/pkg/scenario"
)

// Server hosts an engine behind POST /v1/runs.
type Server struct {
	engine engine.Engine
	logger *zap.Logger
}

// New creates a server for the given engine. A nil logger disables logging.
func New(eng engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: eng, logger: logger}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(executor.RunsPath, s.handleRuns)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRuns(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required", "method_not_allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err), "bad_request")
		return
	}
	wire, err := scenario.UnmarshalWire(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	// This is the other side of the boundary: the scenario is rebuilt from
	// plain data only. Whatever metadata did not survive the encoding is
	// gone for good here.
	sc, err := scenario.DecodeWire(wire)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "invalid_scenario")
		return
	}

	stream, err := s.engine.Run(req.Context(), sc)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error(), "engine_rejected")
		return
	}

	s.logger.Info("run started",
		zap.Int("turns", len(sc.Turns)),
		zap.Bool("shaped", sc.Output != nil))
	s.streamEvents(w, req, stream)
}

// streamEvents writes the run's events as NDJSON, flushing per event so
// the client observes them in emission order.
func (s *Server) streamEvents(w http.ResponseWriter, req *http.Request, stream *engine.Stream) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	count := 0
	for {
		ev, ok, err := stream.Next(req.Context())
		if err != nil {
			s.logger.Warn("client gone mid-stream", zap.Error(err), zap.Int("events", count))
			return
		}
		if !ok {
			break
		}
		if err := enc.Encode(ev); err != nil {
			s.logger.Warn("write event", zap.Error(err), zap.Int("events", count))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		count++
		if ev.Terminal() {
			s.logger.Info("run finished", zap.String("terminal", ev.Kind), zap.Int("events", count))
			return
		}
	}
	s.logger.Warn("stream ended without terminal event", zap.Int("events", count))
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": engine.ErrorDetail{Message: message, Code: code},
	})
	s.logger.Warn("request rejected", zap.Int("status", status), zap.String("code", code), zap.String("message", message))
}
