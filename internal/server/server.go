// Package server exposes the agent over HTTP: REST endpoints for sessions
// and datasets plus a WebSocket event stream per session.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"mlagent/internal/dataset"
	"mlagent/internal/engine"
	"mlagent/internal/events"
)

// RunFunc executes one goal and streams its events to sink. The server
// stays ignorant of provider/sandbox wiring; cmd injects a real Runner.
type RunFunc func(ctx context.Context, identifiers []string, goal string, sink events.Sink) (*engine.RunReport, error)

type Server struct {
	addr     string
	log      *slog.Logger
	resolver *dataset.Resolver
	run      RunFunc
	sessions *sessionManager
	upgrader websocket.Upgrader
}

func New(addr string, logger *slog.Logger, resolver *dataset.Resolver, run RunFunc) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		log:      logger,
		resolver: resolver,
		run:      run,
		sessions: newSessionManager(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/datasets", s.handleListDatasets)
	r.Post("/sessions", s.handleCreateSession)
	r.Get("/sessions/{id}", s.handleSessionStatus)
	r.Post("/sessions/{id}/chat", s.handleChat)
	r.Get("/ws/{id}", s.handleWebSocket)
	return r
}

// ListenAndServe runs until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	entries := s.resolver.ListAvailable()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"name":    e.Name,
			"path":    e.Path,
			"size":    e.Size,
			"builtin": e.Builtin,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": out})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.create()
	s.log.Info("session created", "session_id", sess.id)
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": sess.id})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	busy, count, lastErr := sess.status()
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.id,
		"busy":       busy,
		"events":     count,
		"last_error": lastErr,
	})
}

type chatRequest struct {
	Datasets []string `json:"datasets"`
	Goal     string   `json:"goal"`
}

// handleChat starts one run on the session. A session runs at most one
// goal at a time; concurrent requests get 409.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Datasets) == 0 || req.Goal == "" {
		writeError(w, http.StatusBadRequest, "datasets and goal are required")
		return
	}

	if !sess.tryAcquire() {
		writeError(w, http.StatusConflict, "session is busy")
		return
	}

	go func() {
		log := s.log.With("session_id", sess.id)
		log.Info("run started", "datasets", req.Datasets)
		report, err := s.run(context.Background(), req.Datasets, req.Goal, sess)
		if err != nil {
			log.Error("run failed", "error", err)
			sess.release(err.Error())
			return
		}
		log.Info("run completed", "run_id", report.RunID, "iterations", report.Iterations)
		sess.release("")
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"session_id": sess.id, "status": "running"})
}

// handleWebSocket streams the session's events: full history first, live
// events after, one JSON message each.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, unsubscribe := sess.subscribe()
	defer unsubscribe()

	// Reader goroutine detects client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case e := <-ch:
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
