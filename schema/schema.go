// Package schema keeps the schema version marker of persisted data current.
//
// Fields are only ever added between versions, never redefined, so moving
// forward needs no field transformation. Migration is the hook for the day
// that stops being true. Data stamped by a newer build is not understood and
// is reset to defaults.
package schema

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stevemurr/localstate/codec"
	"github.com/stevemurr/localstate/outcome"
)

// Decision is what a Guard does with a stored version.
type Decision int

const (
	// Current means the stored version matches.
	Current Decision = iota
	// Stamp means no version was stored; write the marker.
	Stamp
	// Migrate means the data is older; migrate and write the marker.
	Migrate
	// Reset means the data is from a newer version; discard it.
	Reset
)

func (d Decision) String() string {
	switch d {
	case Current:
		return "current"
	case Stamp:
		return "stamp"
	case Migrate:
		return "migrate"
	case Reset:
		return "reset"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Migration upgrades data written at version from to the guard's version.
type Migration func(from int, data codec.Record) (codec.Record, error)

// IntStore is the slice of the key-value interface a KeyMarker needs.
type IntStore interface {
	GetInt(ctx context.Context, key string) (int64, bool, error)
	SetInt(ctx context.Context, key string, v int64) error
}

// Marker reads and writes a stored version.
type Marker interface {
	Version(ctx context.Context) (int, bool, error)
	SetVersion(ctx context.Context, v int) error
}

// KeyMarker keeps the version under a single key of a key-value store.
type KeyMarker struct {
	Store IntStore
	Key   string
}

func (m KeyMarker) Version(ctx context.Context) (int, bool, error) {
	v, ok, err := m.Store.GetInt(ctx, m.Key)
	if err != nil || !ok {
		return 0, false, err
	}
	return int(v), true, nil
}

func (m KeyMarker) SetVersion(ctx context.Context, v int) error {
	return m.Store.SetInt(ctx, m.Key, int64(v))
}

// Guard checks stored versions against Expected.
type Guard struct {
	Expected int
	Migrate  Migration
	log      *zap.Logger
}

func NewGuard(expected int, migrate Migration, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{Expected: expected, Migrate: migrate, log: log}
}

// Decide classifies a stored version.
func (g *Guard) Decide(stored int, present bool) Decision {
	switch {
	case !present || stored == 0:
		return Stamp
	case stored == g.Expected:
		return Current
	case stored < g.Expected:
		return Migrate
	default:
		return Reset
	}
}

// EnsureVersion brings a key-value backed marker up to date. On Reset the
// reset callback clears the data before the marker is written. Key-value
// fields are addressed by key and only ever added, so Migrate only restamps.
func (g *Guard) EnsureVersion(ctx context.Context, m Marker, reset func(context.Context) error) (Decision, outcome.Outcome) {
	stored, present, err := m.Version(ctx)
	if err != nil {
		g.log.Warn("schema marker unreadable, restamping", zap.Error(err))
		present = false
	}

	d := g.Decide(stored, present)
	if d == Current {
		return d, outcome.Unchanged()
	}

	var resetErr error
	if d == Reset {
		g.log.Warn("stored data is from a newer schema, resetting",
			zap.Int("stored", stored), zap.Int("expected", g.Expected))
		if reset != nil {
			resetErr = reset(ctx)
		}
	}
	if err := m.SetVersion(ctx, g.Expected); err != nil {
		g.log.Error("write schema marker", zap.Error(err))
		return d, outcome.Failure(fmt.Errorf("%w: stamp: %w", outcome.ErrIO, err))
	}
	switch {
	case resetErr != nil:
		return d, outcome.Failure(fmt.Errorf("%w: reset: %w", outcome.ErrIO, resetErr))
	case d == Reset:
		return d, outcome.Default(nil)
	}
	return d, outcome.Success()
}

// ApplyRecord brings a file-backed record to the expected version. The
// returned record always carries Expected.
func (g *Guard) ApplyRecord(rec codec.Record) (codec.Record, Decision) {
	d := g.Decide(rec.Version, rec.Version != 0)
	switch d {
	case Migrate:
		if g.Migrate != nil {
			migrated, err := g.Migrate(rec.Version, rec.Clone())
			if err != nil {
				g.log.Error("schema migration failed, resetting",
					zap.Int("from", rec.Version), zap.Int("to", g.Expected), zap.Error(err))
				return codec.NewRecord(g.Expected), Reset
			}
			rec = migrated
		}
	case Reset:
		g.log.Warn("record is from a newer schema, resetting",
			zap.Int("stored", rec.Version), zap.Int("expected", g.Expected))
		return codec.NewRecord(g.Expected), Reset
	}
	if rec.Fields == nil {
		rec.Fields = map[string]any{}
	}
	rec.Version = g.Expected
	return rec, d
}
