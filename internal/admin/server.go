// Package admin serves a small local HTTP surface for the live session.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"petcare-console/internal/notify"
	"petcare-console/internal/robot"
	"petcare-console/internal/telemetry"
)

// Robot is the session surface the admin pages drive.
type Robot interface {
	Snapshot() telemetry.RobotStatus
	Video() robot.VideoStatus
	EmergencyStop()
	ToggleMode() (telemetry.Mode, error)
	Resume() bool
}

// Notifications is the read side of the notification center.
type Notifications interface {
	List() []notify.Notification
	UnreadCount() int
}

type Server struct {
	robot Robot
	notes Notifications
	tpl   *template.Template
	log   *slog.Logger
}

//go:embed templates/index.html
var content embed.FS

func NewServer(r Robot, n Notifications, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{robot: r, notes: n, tpl: tpl, log: log.With("component", "admin")}
}

// Router returns the chi router with every admin route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.With(middleware.NoCache).Get("/status", s.handleStatus)
	r.With(middleware.NoCache).Get("/notifications", s.handleNotifications)
	r.Post("/stop", s.handleStop)
	r.Post("/toggle-mode", s.handleToggleMode)
	r.Post("/resume", s.handleResume)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("admin listening", "addr", addr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type statusView struct {
	Status telemetry.RobotStatus `json:"status"`
	Video  videoView             `json:"video"`
}

type videoView struct {
	On     bool   `json:"on"`
	State  string `json:"state"`
	Stream string `json:"stream,omitempty"`
	Codec  string `json:"codec,omitempty"`
}

func (s *Server) view() statusView {
	v := s.robot.Video()
	vv := videoView{On: v.On, State: string(v.State)}
	if v.Stream != nil {
		vv.Stream = v.Stream.ID
		vv.Codec = v.Stream.Codec
	}
	return statusView{Status: s.robot.Snapshot(), Video: vv}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	v := s.view()
	data := struct {
		Status        telemetry.RobotStatus
		Video         videoView
		Unread        int
		Notifications []notify.Notification
	}{
		Status:        v.Status,
		Video:         v.Video,
		Unread:        s.notes.UnreadCount(),
		Notifications: s.notes.List(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Warn("render index", "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"unread": s.notes.UnreadCount(),
		"items":  s.notes.List(),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.log.Warn("emergency stop requested over admin")
	s.robot.EmergencyStop()
	writeJSON(w, http.StatusOK, map[string]any{"mode": s.robot.Snapshot().Mode})
}

func (s *Server) handleToggleMode(w http.ResponseWriter, r *http.Request) {
	mode, err := s.robot.ToggleMode()
	switch {
	case errors.Is(err, robot.ErrEmergencyLatched):
		writeJSON(w, http.StatusConflict, map[string]any{"mode": mode, "error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"mode": mode})
	}
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	resumed := s.robot.Resume()
	writeJSON(w, http.StatusOK, map[string]any{"resumed": resumed, "mode": s.robot.Snapshot().Mode})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
