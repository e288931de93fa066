// Package orderedset keeps a set of string ids together with a
// most-recently-added-first ordering of the same ids, persisted to one file.
//
// It backs the favorites list (Add/Remove/Toggle) and the recent tool usage
// list (Touch with a Limit). Every mutation that changes state writes the
// file once and notifies listeners once; no-op calls do neither.
package orderedset

import (
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stevemurr/localstate/atomicfile"
	"github.com/stevemurr/localstate/codec"
	"github.com/stevemurr/localstate/outcome"
	"github.com/stevemurr/localstate/schema"
)

// Field names of the persisted document.
const (
	OrderKey     = "order"
	UpdatedAtKey = "updatedAt"
)

// ErrNotInitialized is the panic value when a Store is used before Init.
var ErrNotInitialized = errors.New("orderedset: Init must be called before use")

// Op identifies the kind of change delivered to listeners.
type Op int

const (
	Added Op = iota
	Removed
	Promoted
	Cleared
)

func (o Op) String() string {
	switch o {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Promoted:
		return "promoted"
	case Cleared:
		return "cleared"
	}
	return "unknown"
}

// Change describes one mutation. Evicted lists ids dropped from the tail
// because the store's Limit was exceeded. Outcome is the persist result.
type Change struct {
	Op      Op
	ID      string
	Evicted []string
	Outcome outcome.Outcome
}

// Options configure a Store. The zero value is usable.
type Options struct {
	// Guard stamps and checks the schema version of the file.
	Guard *schema.Guard
	// Limit caps the number of ids; 0 means unbounded.
	Limit  int
	Logger *zap.Logger
	// Now is the clock used for updatedAt.
	Now func() time.Time
}

type listener struct {
	id int
	fn func(Change)
}

// Store is an ordered set persisted through an atomicfile.Store.
// It is safe for concurrent use, but listeners must not call back into a
// mutating method of the same Store.
type Store struct {
	mu   sync.Mutex
	file *atomicfile.Store
	opts Options
	log  *zap.Logger

	initialized bool
	members     map[string]struct{}
	order       []string

	listeners []listener
	nextID    int
}

func New(file *atomicfile.Store, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		file:    file,
		opts:    opts,
		log:     log.With(zap.String("path", file.Path())),
		members: make(map[string]struct{}),
	}
}

// Init loads the persisted order. Calls after the first are no-ops.
// Duplicate or empty ids in the file are dropped and the repaired list is
// written back.
func (s *Store) Init() outcome.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return outcome.Unchanged()
	}

	rec, loaded := s.file.Load()
	dirty := false
	if s.opts.Guard != nil {
		var d schema.Decision
		rec, d = s.opts.Guard.ApplyRecord(rec)
		switch {
		case d == schema.Reset:
			loaded = outcome.Worst(loaded, outcome.Default(nil))
			dirty = true
		case d != schema.Current && loaded.Status == outcome.OK:
			dirty = true
		}
	}

	ids, ok := rec.Strings(OrderKey)
	if !ok && rec.Has(OrderKey) {
		s.log.Warn("order field has the wrong type, starting empty")
		dirty = true
	}
	clean := dedupe(ids)
	if len(clean) != len(ids) {
		s.log.Warn("dropped duplicate or empty ids", zap.Int("stored", len(ids)), zap.Int("kept", len(clean)))
		dirty = true
	}

	s.order = clean
	for _, id := range clean {
		s.members[id] = struct{}{}
	}
	if len(s.evictLocked()) > 0 {
		dirty = true
	}
	s.initialized = true

	if dirty {
		return outcome.Worst(loaded, s.file.Save(s.recordLocked()))
	}
	return loaded
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// lockInit takes the lock, panicking if Init has not run.
func (s *Store) lockInit() {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		panic(ErrNotInitialized)
	}
}

// mutate runs fn under the lock. When fn reports a change the new state is
// persisted and listeners are notified after the lock is released.
func (s *Store) mutate(fn func() (Change, bool)) outcome.Outcome {
	s.lockInit()
	ch, changed := fn()
	if !changed {
		s.mu.Unlock()
		return outcome.Unchanged()
	}
	ch.Outcome = s.file.Save(s.recordLocked())
	ls := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range ls {
		l.fn(ch)
	}
	return ch.Outcome
}

func (s *Store) recordLocked() codec.Record {
	version := 0
	if s.opts.Guard != nil {
		version = s.opts.Guard.Expected
	}
	rec := codec.NewRecord(version)
	rec.SetStrings(OrderKey, s.order)
	rec.SetTime(UpdatedAtKey, s.opts.Now())
	return rec
}

// evictLocked trims the tail beyond Limit and returns the dropped ids.
func (s *Store) evictLocked() []string {
	if s.opts.Limit <= 0 || len(s.order) <= s.opts.Limit {
		return nil
	}
	evicted := slices.Clone(s.order[s.opts.Limit:])
	s.order = slices.Clone(s.order[:s.opts.Limit])
	for _, id := range evicted {
		delete(s.members, id)
	}
	return evicted
}

func (s *Store) addLocked(id string) (Change, bool) {
	if id == "" {
		return Change{}, false
	}
	if _, ok := s.members[id]; ok {
		return Change{}, false
	}
	s.members[id] = struct{}{}
	s.order = slices.Insert(s.order, 0, id)
	return Change{Op: Added, ID: id, Evicted: s.evictLocked()}, true
}

func (s *Store) removeLocked(id string) (Change, bool) {
	if _, ok := s.members[id]; !ok {
		return Change{}, false
	}
	delete(s.members, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return Change{Op: Removed, ID: id}, true
}

// Add inserts id at the front. No-op if id is already present.
func (s *Store) Add(id string) outcome.Outcome {
	return s.mutate(func() (Change, bool) { return s.addLocked(id) })
}

// Remove deletes id without reordering the others. No-op if absent.
func (s *Store) Remove(id string) outcome.Outcome {
	return s.mutate(func() (Change, bool) { return s.removeLocked(id) })
}

// Toggle removes id if present and adds it otherwise.
func (s *Store) Toggle(id string) outcome.Outcome {
	return s.mutate(func() (Change, bool) {
		if _, ok := s.members[id]; ok {
			return s.removeLocked(id)
		}
		return s.addLocked(id)
	})
}

// Touch moves id to the front, adding it if absent. No-op if id is already
// first.
func (s *Store) Touch(id string) outcome.Outcome {
	return s.mutate(func() (Change, bool) {
		if _, ok := s.members[id]; !ok {
			return s.addLocked(id)
		}
		i := slices.Index(s.order, id)
		if i == 0 {
			return Change{}, false
		}
		s.order = slices.Delete(s.order, i, i+1)
		s.order = slices.Insert(s.order, 0, id)
		return Change{Op: Promoted, ID: id}, true
	})
}

// Clear empties the set and removes the backing file.
func (s *Store) Clear() outcome.Outcome {
	s.lockInit()
	if len(s.order) == 0 {
		s.mu.Unlock()
		return s.file.Clear()
	}
	s.order = nil
	s.members = make(map[string]struct{})
	ch := Change{Op: Cleared, Outcome: s.file.Clear()}
	ls := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range ls {
		l.fn(ch)
	}
	return ch.Outcome
}

func (s *Store) Contains(id string) bool {
	s.lockInit()
	defer s.mu.Unlock()
	_, ok := s.members[id]
	return ok
}

// TopN returns up to n ids, most recent first.
func (s *Store) TopN(n int) []string {
	s.lockInit()
	defer s.mu.Unlock()
	if n <= 0 {
		return []string{}
	}
	out := make([]string, min(n, len(s.order)))
	copy(out, s.order)
	return out
}

// All returns every id, most recent first.
func (s *Store) All() []string {
	s.lockInit()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Store) Count() int {
	s.lockInit()
	defer s.mu.Unlock()
	return len(s.members)
}

func (s *Store) IsEmpty() bool { return s.Count() == 0 }

// Subscribe registers fn to be called after every change. The returned
// function unregisters it.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
	}
}
