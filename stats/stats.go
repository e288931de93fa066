// Package stats keeps focus-session totals in the key-value store.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stevemurr/localstate/bounded"
	"github.com/stevemurr/localstate/outcome"
	"github.com/stevemurr/localstate/schema"
	"github.com/stevemurr/localstate/store"
)

const SchemaVersion = 1

// Contract errors returned by Record.
var (
	ErrMissingTimestamp = errors.New("stats: session has no timestamp")
	ErrNegativeDuration = errors.New("stats: session duration is negative")
)

// Session is a completed focus session.
type Session interface {
	Timestamp() time.Time
	Duration() time.Duration
}

// Limits bounds the counters.
type Limits struct {
	MaxMinutes  int64
	MaxSessions int64
}

// Snapshot is a consistent read of the counters.
type Snapshot struct {
	TotalMinutes  int64
	SessionCount  int64
	LastSessionAt time.Time
}

// Store reads and writes focus stats under one key namespace.
type Store struct {
	kv       store.Store
	ns       string
	guard    *schema.Guard
	minutes  bounded.Field
	sessions bounded.Field
	log      *zap.Logger
}

func New(kv store.Store, namespace string, limits Limits, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	ns := namespace + "."
	return &Store{
		kv:       kv,
		ns:       ns,
		guard:    schema.NewGuard(SchemaVersion, nil, log),
		minutes:  bounded.Field{Key: ns + "total_minutes", Max: limits.MaxMinutes},
		sessions: bounded.Field{Key: ns + "session_count", Max: limits.MaxSessions},
		log:      log.With(zap.String("namespace", namespace)),
	}
}

func (s *Store) lastKey() string { return s.ns + "last_session_at" }

func (s *Store) ensure(ctx context.Context) outcome.Outcome {
	_, out := s.guard.EnsureVersion(ctx, schema.KeyMarker{Store: s.kv, Key: s.ns + "schema_version"}, s.clear)
	return out
}

func (s *Store) clear(ctx context.Context) error {
	_, err := store.RemovePrefix(ctx, s.kv, s.ns)
	return err
}

// Snapshot reads the counters. Corrupt counters are repaired to zero.
func (s *Store) Snapshot(ctx context.Context) Snapshot {
	s.ensure(ctx)
	return s.read(ctx)
}

func (s *Store) read(ctx context.Context) Snapshot {
	var snap Snapshot
	snap.TotalMinutes, _ = bounded.ReadInt(ctx, s.kv, s.minutes, s.log)
	snap.SessionCount, _ = bounded.ReadInt(ctx, s.kv, s.sessions, s.log)

	raw, ok, err := s.kv.GetString(ctx, s.lastKey())
	if err != nil && !errors.Is(err, store.ErrWrongType) {
		s.log.Error("read last session time", zap.Error(err))
		return snap
	}
	if !ok {
		return snap
	}
	t, perr := time.Parse(time.RFC3339Nano, raw)
	if err != nil || perr != nil {
		s.log.Warn("resetting corrupt field", zap.String("key", s.lastKey()))
		if _, rerr := s.kv.Remove(ctx, s.lastKey()); rerr != nil {
			s.log.Error("remove corrupt field", zap.Error(rerr))
		}
		return snap
	}
	snap.LastSessionAt = t
	return snap
}

// Record adds a completed session. Only whole minutes count. Storage
// failures are logged; the returned error is non-nil only when the session
// itself is invalid.
func (s *Store) Record(ctx context.Context, sess Session) (Snapshot, error) {
	ts := sess.Timestamp()
	if ts.IsZero() {
		return Snapshot{}, ErrMissingTimestamp
	}
	d := sess.Duration()
	if d < 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNegativeDuration, d)
	}

	s.ensure(ctx)
	snap := s.read(ctx)
	snap.TotalMinutes, _ = bounded.WriteInt(ctx, s.kv, s.minutes, snap.TotalMinutes+int64(d/time.Minute), s.log)
	snap.SessionCount, _ = bounded.WriteInt(ctx, s.kv, s.sessions, snap.SessionCount+1, s.log)
	if ts.After(snap.LastSessionAt) {
		snap.LastSessionAt = ts.UTC()
		if err := s.kv.SetString(ctx, s.lastKey(), snap.LastSessionAt.Format(time.RFC3339Nano)); err != nil {
			s.log.Error("write last session time", zap.Error(err))
		}
	}
	return snap, nil
}

// Reset removes every stats key, including the schema marker.
func (s *Store) Reset(ctx context.Context) outcome.Outcome {
	if err := s.clear(ctx); err != nil {
		s.log.Error("reset stats", zap.Error(err))
		return outcome.Failure(fmt.Errorf("%w: %w", outcome.ErrIO, err))
	}
	return outcome.Success()
}

// FocusSession is a plain Session value.
type FocusSession struct {
	At     time.Time
	Length time.Duration
}

func (f FocusSession) Timestamp() time.Time    { return f.At }
func (f FocusSession) Duration() time.Duration { return f.Length }
