// Package pets is the cat registry.
package pets

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"petcare-console/internal/api"
	"petcare-console/internal/apperr"
)

// Health statuses reported by the robot.
const (
	HealthNormal  = "normal"
	HealthWarning = "warning"
)

// Backend is the subset of the API the registry calls.
type Backend interface {
	Cats(ctx context.Context, userID int64) ([]api.Cat, error)
	AddCat(ctx context.Context, cat api.NewCat) error
	DeleteCat(ctx context.Context, id int64) error
}

// Registry lists and edits a user's cats.
type Registry struct {
	backend Backend
	log     *slog.Logger
}

func New(backend Backend, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{backend: backend, log: log}
}

// List returns the user's cats. Fetch failures are logged and yield an
// empty list.
func (r *Registry) List(ctx context.Context, userID int64) []api.Cat {
	cats, err := r.backend.Cats(ctx, userID)
	if err != nil {
		r.log.Warn("list cats", "user_id", userID, "err", err)
		return []api.Cat{}
	}
	return cats
}

// Add validates and registers a cat.
func (r *Registry) Add(ctx context.Context, cat api.NewCat) error {
	cat.Name = strings.TrimSpace(cat.Name)
	switch {
	case cat.Name == "":
		return apperr.Invalid("name", "required")
	case cat.Age < 0:
		return apperr.Invalid("age", "must not be negative")
	case cat.Weight < 0 || math.IsNaN(cat.Weight):
		return apperr.Invalid("weight", "must not be negative")
	}
	if err := r.backend.AddCat(ctx, cat); err != nil {
		return err
	}
	r.log.Info("cat registered", "name", cat.Name)
	return nil
}

// Delete removes a cat.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	return r.backend.DeleteCat(ctx, id)
}

// NeedsAttention filters cats whose health status is not normal.
func NeedsAttention(cats []api.Cat) []api.Cat {
	var out []api.Cat
	for _, c := range cats {
		if c.HealthStatus != "" && c.HealthStatus != HealthNormal {
			out = append(out, c)
		}
	}
	return out
}
