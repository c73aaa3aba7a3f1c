package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/theatre"
	"github.com/aretw0/theatre/internal/adapters/file"
	"github.com/aretw0/theatre/internal/adapters/redis"
	"github.com/aretw0/theatre/internal/adapters/sqlite"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/observability"
	"github.com/aretw0/theatre/pkg/persistence/middleware"
	"github.com/aretw0/theatre/pkg/ports"
	"github.com/aretw0/theatre/pkg/session"
)

// Store backends selectable with --store.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// KeyEnv names the environment variable holding the base64 AES-256 key
// used to seal stored scenes.
const KeyEnv = "THEATRE_SCENE_KEY"

// ErrUnknownStore is returned for a --store value that names no backend.
var ErrUnknownStore = errors.New("unknown store")

// Options carries the persistent CLI flags.
type Options struct {
	RepoPath   string
	Debug      bool
	Store      string
	RedisAddr  string
	SQLitePath string
	Situation  string
	// Scene is the stored scene to open. Empty opens a fresh scene named
	// after the repository.
	Scene string
	// Redact lists key patterns masked in custom values before saving.
	Redact []string
	// EncryptionKey, when set, seals every stored scene.
	EncryptionKey []byte
}

// KeyFromEnv decodes the key in KeyEnv. It returns nil when the variable is unset.
func KeyFromEnv() ([]byte, error) {
	v := os.Getenv(KeyEnv)
	if v == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyEnv, err)
	}
	return key, nil
}

// OpenSessions builds the scene manager for the selected store backend.
// The returned close function releases the backend connection.
func OpenSessions(opts Options, logger *slog.Logger) (*session.Manager, func() error, error) {
	store, closeFn, locker, err := openStore(opts)
	if err != nil {
		return nil, nil, err
	}

	var mws []middleware.Middleware
	if len(opts.Redact) > 0 {
		mw, err := middleware.NewRedactMiddleware(opts.Redact)
		if err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("invalid redact pattern: %w", err)
		}
		mws = append(mws, mw)
	}
	if opts.EncryptionKey != nil {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: opts.EncryptionKey})
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		mws = append(mws, mw)
	}

	managerOpts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(locker))
	}
	return session.NewManager(middleware.Chain(store, mws...), managerOpts...), closeFn, nil
}

func openStore(opts Options) (ports.SceneStore, func() error, ports.DistributedLocker, error) {
	noop := func() error { return nil }
	layout := theatre.NewLayout(opts.RepoPath)

	switch opts.Store {
	case "", StoreFile:
		return file.New(layout.Scenes()), noop, nil, nil

	case StoreRedis:
		store := redis.New(opts.RedisAddr, "", 0)
		if err := store.Client().Ping(context.Background()).Err(); err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("failed to reach redis at %s: %w", opts.RedisAddr, err)
		}
		return store, store.Close, redis.NewLocker(store.Client(), redis.DefaultPrefix), nil

	case StoreSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(layout.Dir, "scenes.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store.Close, nil, nil
	}
	return nil, nil, nil, fmt.Errorf("%w: %q (want %s, %s or %s)", ErrUnknownStore, opts.Store, StoreFile, StoreRedis, StoreSQLite)
}

// OpenScene creates the scene for the repository and, when opts.Scene is
// set, loads it from the store. A scene missing from the store starts empty
// under that name. Extra options are applied after the CLI defaults.
func OpenScene(ctx context.Context, opts Options, logger *slog.Logger, extra ...theatre.Option) (*theatre.Scene, func() error, error) {
	sessions, closeStore, err := OpenSessions(opts, logger)
	if err != nil {
		return nil, nil, err
	}

	sceneOpts := []theatre.Option{
		theatre.WithLogger(logger),
		theatre.WithSessionManager(sessions),
	}
	if opts.Debug {
		sceneOpts = append(sceneOpts, theatre.WithLifecycleHooks(observability.LoggingHooks(logger)))
	}
	if opts.Situation != "" {
		sceneOpts = append(sceneOpts, theatre.WithSituation(opts.Situation))
	}
	if opts.Scene != "" {
		sceneOpts = append(sceneOpts, theatre.WithName(opts.Scene))
	}
	sceneOpts = append(sceneOpts, extra...)

	scene, err := theatre.New(opts.RepoPath, sceneOpts...)
	if err != nil {
		_ = closeStore()
		return nil, nil, fmt.Errorf("error initializing scene: %w", err)
	}

	closeAll := func() error {
		return errors.Join(scene.Close(), closeStore())
	}

	if opts.Scene != "" {
		err := scene.Load(ctx, opts.Scene)
		switch {
		case errors.Is(err, domain.ErrSceneNotFound):
			logger.Info("starting new scene", "scene", opts.Scene)
		case err != nil:
			_ = closeAll()
			return nil, nil, err
		}
	}
	return scene, closeAll, nil
}
