package app

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"hermes/internal/config"
	"hermes/internal/db"
	"hermes/internal/engine"
	"hermes/internal/logging"
	"hermes/internal/migrate"
)

// App is an opened workspace: its config, logger, database and engine.
type App struct {
	Workspace string
	Config    *config.Config
	Logger    *logging.Logger
	DB        *sql.DB
	Engine    engine.Engine
}

// Options tune Open. The zero value reads hermes.yml if present and logs to stderr.
type Options struct {
	// RequireConfig fails when the workspace has no hermes.yml.
	RequireConfig bool
	// LogOutput receives log lines when the config names no log file.
	LogOutput io.Writer
}

// Open loads the workspace config, builds the logger, then opens and
// migrates the database.
func Open(workspace string, opts Options) (*App, error) {
	if workspace == "" {
		workspace = "."
	}
	load := config.LoadOptional
	if opts.RequireConfig {
		load = config.Load
	}
	cfg, err := load(workspace)
	if err != nil {
		return nil, err
	}
	logCfg := cfg.Log
	if logCfg.File != "" && !filepath.IsAbs(logCfg.File) {
		logCfg.File = filepath.Join(workspace, logCfg.File)
	}
	logger, err := logging.New(logCfg, opts.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		logger.Close()
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		logger.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Debug().Str("workspace", workspace).Str("db", db.Path(workspace)).Msg("workspace opened")
	return &App{
		Workspace: workspace,
		Config:    cfg,
		Logger:    logger,
		DB:        conn,
		Engine:    engine.New(conn, cfg, logger.Logger),
	}, nil
}

// Close releases the database and the log file.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return errors.Join(a.DB.Close(), a.Logger.Close())
}
