package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"petcare-console/internal/api"
	"petcare-console/internal/apperr"
	"petcare-console/internal/auth"
	"petcare-console/internal/config"
	"petcare-console/internal/logging"
	"petcare-console/internal/notify"
	"petcare-console/internal/patrol"
	"petcare-console/internal/pets"
	"petcare-console/internal/store"
)

// defaultLogFile receives logs while the TUI owns the terminal.
const defaultLogFile = "petcare-console.log"

// app bundles the collaborators every command needs.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	db      *store.DB
	client  *api.Client
	auth    *auth.Service
	notes   *notify.Center
	pets    *pets.Registry
	patrol  *patrol.Service
	closers []io.Closer
}

// newApp loads the configuration and opens local state. With toFile set,
// logs go to the configured log file instead of stderr.
func newApp(toFile bool) (*app, error) {
	cfg, err := config.Load(configPath, schemaPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	a := &app{cfg: cfg}

	switch {
	case toFile:
		path := cfg.Log.File
		if path == "" {
			path = defaultLogFile
		}
		l, c, err := logging.NewFile(path, cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.log = l
		a.closers = append(a.closers, c)
	case cfg.Log.File != "":
		l, c, err := logging.NewFile(cfg.Log.File, cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.log = l
		a.closers = append(a.closers, c)
	default:
		a.log = logging.NewWriter(os.Stderr, cfg.Log.Level)
	}

	db, err := store.Open(cfg.State.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db)

	client, err := api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  a.log.With("component", "api"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client
	a.auth = auth.New(client, db, a.log.With("component", "auth"))
	client.SetTokens(a.auth)

	a.notes = notify.New(db, a.log.With("component", "notify"))
	if u := a.auth.Current(); u != nil {
		a.notes.SetRemote(client, u.ID)
	}
	a.pets = pets.New(client, a.log.With("component", "pets"))
	a.patrol = patrol.New(client, a.log.With("component", "patrol"))
	return a, nil
}

// user returns the signed-in user or auth.ErrNotSignedIn.
func (a *app) user() (*api.User, error) {
	u := a.auth.Current()
	if u == nil {
		return nil, auth.ErrNotSignedIn
	}
	return u, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

// describe turns an error into the message shown to the user.
func describe(err error) string {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("invalid %s: %s", verr.Field, verr.Message)
	case errors.Is(err, auth.ErrNotSignedIn):
		return "not signed in, run: petcare-console login"
	case apperr.IsAuth(err):
		return "the server rejected the credentials: " + err.Error()
	case apperr.IsNetwork(err):
		return "cannot reach the server: " + err.Error()
	default:
		return err.Error()
	}
}
