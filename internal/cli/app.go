// Package cli wires configuration, storage and adapters for the graphlens
// commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/graphlens"
	"github.com/aretw0/graphlens/internal/config"
	"github.com/aretw0/graphlens/internal/logging"
	"github.com/aretw0/graphlens/internal/metrics"
	"github.com/aretw0/graphlens/pkg/adapters/file"
	"github.com/aretw0/graphlens/pkg/adapters/memory"
	"github.com/aretw0/graphlens/pkg/adapters/redis"
	"github.com/aretw0/graphlens/pkg/adapters/sqlite"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/nickname"
	"github.com/aretw0/graphlens/pkg/persistence/middleware"
	"github.com/aretw0/graphlens/pkg/ports"
	"github.com/aretw0/graphlens/pkg/projection"
	"github.com/klauspost/compress/zstd"
)

// SQLiteFile is the database name created under store.path.
const SQLiteFile = "history.db"

// Options are the flags shared by every command. Non-empty values override
// the configuration file.
type Options struct {
	Dir        string
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Debug      bool
	Offline    bool
}

// LoadConfig reads the configuration named by opts, or the first candidate
// file found in opts.Dir, and applies the flag overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		path = config.Find(dir)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	if opts.Debug {
		cfg.LogLevel = "debug"
	}
	if opts.Offline {
		cfg.Nicknames.Enabled = false
	}
	return cfg, nil
}

// NewLogger creates the stderr logger described by cfg.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format := logging.Format(cfg.LogFormat)
	if format != logging.FormatJSON {
		format = logging.FormatText
	}
	return logging.NewWithFormat(os.Stderr, level, format), nil
}

// OpenStore opens the configured history backend wrapped in the
// compression and encryption middleware. The returned close function
// releases the backend.
func OpenStore(cfg *config.Config) (ports.HistoryStore, func() error, error) {
	var (
		store   ports.HistoryStore
		closeFn = func() error { return nil }
	)

	switch cfg.Store.Backend {
	case config.BackendMemory:
		store = memory.NewStore()
	case config.BackendFile:
		store = file.New(cfg.Store.Path)
	case config.BackendSQLite:
		path := cfg.Store.Path
		if path != ":memory:" {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
			}
			path = filepath.Join(path, SQLiteFile)
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	case config.BackendRedis:
		rc := cfg.Store.Redis
		s := redis.New(rc.Addr, rc.Password, rc.DB,
			redis.WithPrefix(rc.Prefix),
			redis.WithTTL(cfg.RedisTTL()),
		)
		store, closeFn = s, s.Close
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	var mws []middleware.Middleware
	if cfg.Store.Compress {
		mw, err := middleware.NewCompressionMiddleware(zstd.SpeedDefault)
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	key, err := cfg.EncryptionKey()
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	if key != nil {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), closeFn, nil
}

// App is a fully wired viewer with its supporting services.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Viewer    *graphlens.Viewer
	Nicknames *nickname.Loader

	closeStore func() error
}

// NewApp builds the viewer described by cfg. The nickname registry, when
// enabled, is fetched in the background and bound to ctx.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, closeStore, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	pc, err := cfg.ProjectionConfig()
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics.New(),
		closeStore: closeStore,
	}

	popts := []projection.Option{projection.WithLogger(logger)}
	if cfg.Nicknames.Enabled {
		source := cfg.Nicknames.Source
		if source == "" {
			source = nickname.DefaultSource
		}
		app.Nicknames = nickname.NewLoader(source,
			nickname.WithLogger(logger),
			nickname.WithTimeout(cfg.NicknameTimeout()),
		)
		app.Nicknames.Start(ctx)
		popts = append(popts, projection.WithNicknames(app.Nicknames))
	}

	app.Viewer = graphlens.New(
		graphlens.WithLogger(logger),
		graphlens.WithStore(store),
		graphlens.WithProjector(projection.New(pc, popts...)),
		graphlens.WithMetrics(app.Metrics),
		graphlens.WithViewport(cfg.ViewportValue()),
		graphlens.WithLifecycleHooks(debugHooks(logger)),
	)
	return app, nil
}

// Close releases the history backend.
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnLoad: func(ctx context.Context, e *domain.LoadEvent) {
			logger.Debug("Graph shown", "file", e.Filename, "type", e.Type, "nodes", e.Nodes, "links", e.Links, "dropped", e.Dropped)
		},
		OnFailure: func(ctx context.Context, e *domain.LoadEvent) {
			logger.Debug("Load failed", "file", e.Filename, "err", e.Error)
		},
		OnForget: func(ctx context.Context, e *domain.LoadEvent) {
			logger.Debug("History entry removed", "file", e.Filename)
		},
	}
}
