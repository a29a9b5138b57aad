package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hermes/internal/config"
	"hermes/internal/events"
	"hermes/internal/repo"
)

// ErrInvalid marks input the engine refuses. Wrapped errors carry the reason.
var ErrInvalid = errors.New("invalid input")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Log    zerolog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, log zerolog.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Log:    log,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) location() *time.Location {
	if e.Config == nil {
		return time.UTC
	}
	return e.Config.Location()
}

func (e Engine) eventWriter() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// checkID rejects ids that would collide with the reserved virtual key prefixes.
func checkID(kind, id string) error {
	if strings.Contains(id, "::") {
		return invalid("%s id %q must not contain \"::\"", kind, id)
	}
	if strings.TrimSpace(id) != id {
		return invalid("%s id %q has surrounding spaces", kind, id)
	}
	return nil
}

func actorOrDefault(actorID string) string {
	if actorID == "" {
		return "local-user"
	}
	return actorID
}
