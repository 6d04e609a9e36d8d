package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"healthbridge/internal/classifier"
	"healthbridge/internal/config"
	"healthbridge/internal/db"
	"healthbridge/internal/engine"
	"healthbridge/internal/migrate"
)

// Options selects the workspace and the loader used for model handles.
type Options struct {
	Workspace string
	Logger    *zap.Logger
	// Loader defaults to a classifier.DefaultLoader rooted at Workspace.
	Loader classifier.Loader
}

// Workspace is an opened workspace: migrated DB, loaded config and an
// engine over both.
type Workspace struct {
	Dir    string
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// Open opens the workspace DB, applies migrations, reads healthbridge.yml
// (falling back to defaults) and builds the engine.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	dir := opts.Workspace
	if dir == "" {
		dir = "."
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.Debug("workspace opened", zap.String("workspace", dir), zap.String("db", db.Path(dir)), zap.Int("schema_version", version))
	loader := opts.Loader
	if loader == nil {
		loader = classifier.DefaultLoader{BaseDir: dir}
	}
	return &Workspace{
		Dir:    dir,
		DB:     conn,
		Config: cfg,
		Engine: engine.New(conn, cfg, log, loader),
	}, nil
}

// NewLogger returns a production logger, or a development one with debug
// output when debug is set.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
