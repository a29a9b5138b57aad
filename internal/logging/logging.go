package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"hermes/internal/config"
)

const permission = 0o664

// Logger pairs a zerolog logger with the file it writes to, if any.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New builds a logger at cfg.Level. Output goes to cfg.File when set,
// otherwise to w (os.Stderr when w is nil).
func New(cfg config.LogConfig, w io.Writer) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	l := &Logger{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		l.file, err = os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		w = zerolog.SyncWriter(l.file)
	}
	l.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
