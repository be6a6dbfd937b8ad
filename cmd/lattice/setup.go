package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/adapters/file"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/loam"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/adapters/sqlite"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/spf13/cobra"
)

// app bundles what every command needs.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  ports.ProjectStore
	locker ports.DistributedLocker
	vault  ports.PaletteLoader
	closer func() error
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// loadApp reads the config, applies flag overrides and opens the store.
func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.DataDir = dir
	}
	if store, _ := cmd.Flags().GetString("store"); store != "" {
		cfg.Store = store
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, _ := cfg.Level()
	a := &app{cfg: cfg, logger: logging.New(level)}
	if err := a.openStore(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStore() error {
	var base ports.ProjectStore
	switch a.cfg.Store {
	case config.StoreMemory:
		base = memory.NewStore()
	case config.StoreFile:
		base = file.New(filepath.Join(a.cfg.DataDir, "projects"))
	case config.StoreRedis:
		var opts []redis.Option
		if a.cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(a.cfg.Redis.Prefix))
		}
		if a.cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(a.cfg.Redis.TTL))
		}
		rs := redis.New(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, opts...)
		a.locker = redis.NewLocker(rs.Client(), a.cfg.Redis.Prefix)
		a.closer = rs.Close
		base = rs
	case config.StoreSQLite:
		ss, err := sqlite.Open(a.cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.closer = ss.Close
		base = ss
	default:
		return fmt.Errorf("unknown store %q", a.cfg.Store)
	}

	var mws []middleware.Middleware
	if len(a.cfg.RedactAttributes) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(a.cfg.RedactAttributes))
	}
	active, fallback, err := a.cfg.Keys()
	if err != nil {
		return err
	}
	if active != nil {
		enc := middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback}
		if err := enc.Validate(); err != nil {
			return err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	a.store = middleware.Chain(base, mws...)
	a.logger.Debug("store opened", "backend", a.cfg.Store, "middlewares", len(mws))
	return nil
}

// palette returns the built-in templates, extended by the configured vault.
func (a *app) palette() (ports.PaletteLoader, error) {
	if a.cfg.PaletteDir == "" {
		return registry.Builtin(), nil
	}
	vault, err := loam.Open(a.cfg.PaletteDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open palette %s: %w", a.cfg.PaletteDir, err)
	}
	a.vault = vault
	return registry.Builtin(vault), nil
}

// watchPalette logs palette edits made while the server runs. Drops read
// the vault on every call, so a change is live as soon as it is written.
func (a *app) watchPalette(ctx context.Context) {
	w, ok := a.vault.(ports.Watchable)
	if !ok {
		return
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		a.logger.Warn("palette watch disabled", "err", err)
		return
	}
	go func() {
		for range changes {
			kinds, err := a.vault.ListTemplates(ctx)
			if err != nil {
				a.logger.Warn("palette reload failed", "err", err)
				continue
			}
			a.logger.Info("palette changed", "dir", a.cfg.PaletteDir, "templates", len(kinds))
		}
	}()
}

// studio builds the facade over the opened store.
func (a *app) studio(opts ...lattice.Option) (*lattice.Studio, error) {
	palette, err := a.palette()
	if err != nil {
		return nil, err
	}
	base := []lattice.Option{
		lattice.WithLogger(a.logger),
		lattice.WithPalette(palette),
		lattice.WithRenderDelay(a.cfg.RenderDelay),
		lattice.WithSaveDelay(a.cfg.SaveDelay),
	}
	if a.locker != nil {
		base = append(base, lattice.WithLocker(a.locker))
	}
	return lattice.New(a.store, append(base, opts...)...), nil
}

// shutdown closes the studio (flushing pending saves) and then the store.
func shutdown(ctx context.Context, studio *lattice.Studio, a *app) error {
	var errs []error
	if studio != nil {
		errs = append(errs, studio.Close(ctx))
	}
	errs = append(errs, a.Close())
	return errors.Join(errs...)
}
