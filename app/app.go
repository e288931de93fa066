// Package app wires one store per storage location. Consumers receive the
// stores from an App instead of reaching for globals; tests get a fresh
// state by calling Open again.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stevemurr/localstate/atomicfile"
	"github.com/stevemurr/localstate/codec"
	"github.com/stevemurr/localstate/config"
	"github.com/stevemurr/localstate/consent"
	"github.com/stevemurr/localstate/fsys"
	"github.com/stevemurr/localstate/orderedset"
	"github.com/stevemurr/localstate/outcome"
	"github.com/stevemurr/localstate/schema"
	"github.com/stevemurr/localstate/stats"
	"github.com/stevemurr/localstate/store"
)

// App holds the initialized stores.
type App struct {
	Config    *config.Config
	KV        store.Store
	Favorites *orderedset.Store
	Recents   *orderedset.Store
	Stats     *stats.Store
	Consent   *consent.Flags

	// InitOutcomes records how each file-backed store came up, keyed by
	// file name.
	InitOutcomes map[string]outcome.Outcome

	log *zap.Logger
}

// Open creates the data directory, the key-value backend and every store,
// and initializes the ordered sets concurrently.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	kv, err := store.New(cfg.Backend, cfg.DataDir, log.Named("kv"))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	a := &App{
		Config:       cfg,
		KV:           kv,
		Favorites:    openSet(cfg, cfg.Favorites, log.Named("favorites")),
		Recents:      openSet(cfg, cfg.Recents, log.Named("recents")),
		Stats:        stats.New(kv, cfg.Stats.Namespace, stats.Limits{MaxMinutes: cfg.Stats.MaxMinutes, MaxSessions: cfg.Stats.MaxSessions}, log.Named("stats")),
		Consent:      consent.New(kv, "consent", log.Named("consent")),
		InitOutcomes: make(map[string]outcome.Outcome, 2),
		log:          log,
	}

	outs := make([]outcome.Outcome, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i, set := range []*orderedset.Store{a.Favorites, a.Recents} {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outs[i] = set.Init()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.Close()
		return nil, err
	}

	for i, name := range []string{cfg.Favorites.File, cfg.Recents.File} {
		a.InitOutcomes[name] = outs[i]
		if !outs[i].OK() && outs[i].Err != nil {
			log.Warn("store started from defaults", zap.String("file", name), zap.Stringer("outcome", outs[i]))
		}
	}
	return a, nil
}

func openSet(cfg *config.Config, set config.OrderedSetConfig, log *zap.Logger) *orderedset.Store {
	file := atomicfile.New(fsys.OS{}, cfg.Path(set.File), codec.JSON{}, log)
	return orderedset.New(file, orderedset.Options{
		Guard:  schema.NewGuard(set.SchemaVersion, nil, log),
		Limit:  set.Limit,
		Logger: log,
	})
}

// Close releases the key-value backend.
func (a *App) Close() error {
	if c, ok := a.KV.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
