// Package web serves the local status API: component statistics, the
// tracked-window table, the action journal, and a websocket event stream.
// It binds to loopback by default and is off unless enabled in config.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dbbuilder/termkeep/internal/history"
	"github.com/dbbuilder/termkeep/internal/logging"
	"github.com/dbbuilder/termkeep/internal/monitor"
	"github.com/dbbuilder/termkeep/internal/track"
)

var log = logging.ForComponent(logging.CompWeb)

// Config controls the HTTP listener.
type Config struct {
	// Addr is the listen address, loopback unless overridden.
	Addr string
}

// DefaultAddr is where the status server listens when config leaves it blank.
const DefaultAddr = "127.0.0.1:8425"

// Server is the status HTTP server. It reads monitor state; it never
// mutates it.
type Server struct {
	cfg        Config
	status     func() monitor.Status
	tracker    *track.Tracker
	hist       *history.DB
	events     *monitor.Broadcaster
	httpServer *http.Server
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer wires the status surfaces. hist and events may be nil; the
// corresponding endpoints then report unavailable.
func NewServer(cfg Config, status func() monitor.Status, tracker *track.Tracker,
	hist *history.DB, events *monitor.Broadcaster) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	baseCtx, cancelBase := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		status:     status,
		tracker:    tracker,
		hist:       hist,
		events:     events,
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/windows", s.handleWindows)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/ws/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           withRecover(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start runs the listener until Shutdown. Blocks.
func (s *Server) Start() error {
	log.Info("status server listening", slog.String("addr", s.cfg.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, forcing close when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Warn("graceful shutdown incomplete, forcing close", slog.Any("error", err))
		return s.httpServer.Close()
	}
	return nil
}

// withRecover turns handler panics into 500s instead of killing the process.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("handler panic",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("response encode failed", slog.Any("error", err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	windows := s.tracker.Windows()
	if r.URL.Query().Get("inactive") == "1" {
		windows = s.tracker.InactiveWindows()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(windows),
		"windows": windows,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.hist == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	actions, err := s.hist.RecentActions(limit)
	if err != nil {
		log.Error("history query failed", slog.Any("error", err))
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(actions),
		"actions": actions,
	})
}
