// Package health serves the minimal liveness probe platform schedulers hit.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	logx "autopost/pkg/logx"
)

type Config struct {
	Enabled bool
	Addr    string // default ":8080"
}

// LastCycle reports the most recent cycle, if one has run.
type LastCycle func() (at time.Time, ok bool)

type Server struct {
	cfg   Config
	log   logx.Logger
	srv   *http.Server
	start time.Time
	last  LastCycle
}

func New(cfg Config, last LastCycle, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, log: log, start: time.Now(), last: last}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":         "healthy",
		"service":        "autopost",
		"uptime_seconds": int64(time.Since(s.start).Seconds()),
	}
	if s.last != nil {
		if at, ok := s.last(); ok {
			body["last_cycle"] = at.Format(time.RFC3339)
		}
	}
	writeJSON(w, body)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"service":   "autopost",
		"status":    "running",
		"endpoints": []string{"/health"},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves until ctx is cancelled. Disabled config returns immediately.
func (s *Server) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.srv = &http.Server{Handler: s.Handler(), ReadTimeout: 5 * time.Second}
	s.log.Info("health endpoint listening", logx.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
