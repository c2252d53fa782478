// Package patrol lists patrol logs and recorded clips and aggregates logs
// into the weekly chart.
package patrol

import (
	"context"
	"log/slog"
	"strings"

	"petcare-console/internal/api"
	"petcare-console/internal/apperr"
)

// Backend is the subset of the API the service calls.
type Backend interface {
	Logs(ctx context.Context, userID int64) ([]api.PatrolLog, error)
	AddLog(ctx context.Context, l api.NewPatrolLog) error
	DeleteLog(ctx context.Context, id int64) error
	Videos(ctx context.Context, userID int64) ([]api.Video, error)
	DeleteVideo(ctx context.Context, id int64) error
}

// Service wraps the backend with the console's degrade-to-empty policy.
type Service struct {
	backend Backend
	log     *slog.Logger
}

func New(backend Backend, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{backend: backend, log: log}
}

// Logs returns the user's patrol logs, or an empty list on failure.
func (s *Service) Logs(ctx context.Context, userID int64) []api.PatrolLog {
	logs, err := s.backend.Logs(ctx, userID)
	if err != nil {
		s.log.Warn("list logs", "user_id", userID, "err", err)
		return []api.PatrolLog{}
	}
	return logs
}

// AddLog stores a log. Mode and status default to an automatic, completed
// run; the duration minutes are derived from the duration text.
func (s *Service) AddLog(ctx context.Context, l api.NewPatrolLog) error {
	l.Mode = strings.TrimSpace(l.Mode)
	if l.Mode == "" {
		l.Mode = "auto"
	}
	if l.Status == "" {
		l.Status = "completed"
	}
	if l.DetectionCount < 0 {
		return apperr.Invalid("detectionCount", "must not be negative")
	}
	if l.Distance < 0 {
		return apperr.Invalid("distance", "must not be negative")
	}
	if l.DurationMinutes == 0 {
		l.DurationMinutes = int(DurationMinutes(l.Duration))
	}
	return s.backend.AddLog(ctx, l)
}

// DeleteLog removes a log.
func (s *Service) DeleteLog(ctx context.Context, id int64) error {
	return s.backend.DeleteLog(ctx, id)
}

// Videos returns the user's clips, or an empty list on failure.
func (s *Service) Videos(ctx context.Context, userID int64) []api.Video {
	videos, err := s.backend.Videos(ctx, userID)
	if err != nil {
		s.log.Warn("list videos", "user_id", userID, "err", err)
		return []api.Video{}
	}
	return videos
}

// DeleteVideo removes a clip.
func (s *Service) DeleteVideo(ctx context.Context, id int64) error {
	return s.backend.DeleteVideo(ctx, id)
}
