// Package app wires a workspace together: config, database, migrations and
// the engine. The CLI and the server both start from here.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"taskman/internal/config"
	"taskman/internal/db"
	"taskman/internal/domain"
	"taskman/internal/engine"
	"taskman/internal/migrate"
)

type App struct {
	DB     *sql.DB
	Engine *engine.Engine
	Config *config.Config
	Log    zerolog.Logger
}

// Open loads the workspace config, opens its database, applies pending
// migrations and builds the engine.
func Open(workspace string, log zerolog.Logger) (*App, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &App{
		DB:     conn,
		Engine: engine.New(conn, log),
		Config: cfg,
		Log:    log,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// ResolveActor maps the CLI --actor username to a user, with a helpful
// message when the workspace has no such user.
func (a *App) ResolveActor(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, fmt.Errorf("actor not specified; use --actor <username>")
	}
	u, err := a.Engine.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("actor %s: %w", username, err)
	}
	return u, nil
}
