package store

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/stevemurr/localstate/atomicfile"
	"github.com/stevemurr/localstate/codec"
	"github.com/stevemurr/localstate/fsys"
	"github.com/stevemurr/localstate/outcome"
)

// JsonFileStore keeps every key in one JSON document on disk.
//
// Layout:
//
//	data_dir/
//	  prefs.json   # {"consent.granted": true, "stats.total_minutes": 340, ...}
//
// The file is re-read on every call and rewritten atomically on every
// mutation. A corrupt file reads as empty; an unreadable one fails every
// call until it can be read again.
type JsonFileStore struct {
	mu   sync.RWMutex
	file *atomicfile.Store
}

func NewJsonFileStore(f fsys.FS, path string, log *zap.Logger) (*JsonFileStore, error) {
	if err := f.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &JsonFileStore{file: atomicfile.New(f, path, codec.JSON{}, log)}, nil
}

func (s *JsonFileStore) Path() string { return s.file.Path() }

// load returns the current document. Missing and corrupt files read as
// empty; a file that exists but cannot be read is an error, so a write never
// replaces data it could not see.
func (s *JsonFileStore) load() (codec.Record, error) {
	rec, out := s.file.Load()
	if out.Failed() || errors.Is(out.Err, outcome.ErrIO) {
		return codec.Record{}, out.Err
	}
	return rec, nil
}

func (s *JsonFileStore) update(fn func(*codec.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load()
	if err != nil {
		return err
	}
	fn(&rec)
	return s.file.Save(rec).Err
}

// lookup returns the value under key as a T. Values of another kind,
// including ones the codec keeps as codec.Raw, are ErrWrongType.
func lookup[T any](s *JsonFileStore, key string) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var zero T
	rec, err := s.load()
	if err != nil {
		return zero, false, err
	}
	raw, ok := rec.Fields[key]
	if !ok {
		return zero, false, nil
	}
	v, ok := raw.(T)
	if !ok {
		return zero, true, ErrWrongType
	}
	return v, true, nil
}

func (s *JsonFileStore) GetBool(_ context.Context, key string) (bool, bool, error) {
	return lookup[bool](s, key)
}

func (s *JsonFileStore) SetBool(_ context.Context, key string, v bool) error {
	return s.update(func(r *codec.Record) { r.SetBool(key, v) })
}

func (s *JsonFileStore) GetString(_ context.Context, key string) (string, bool, error) {
	return lookup[string](s, key)
}

func (s *JsonFileStore) SetString(_ context.Context, key string, v string) error {
	return s.update(func(r *codec.Record) { r.SetString(key, v) })
}

func (s *JsonFileStore) GetInt(_ context.Context, key string) (int64, bool, error) {
	return lookup[int64](s, key)
}

func (s *JsonFileStore) SetInt(_ context.Context, key string, v int64) error {
	return s.update(func(r *codec.Record) { r.SetInt(key, v) })
}

func (s *JsonFileStore) Remove(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load()
	if err != nil {
		return false, err
	}
	if !rec.Has(key) {
		return false, nil
	}
	rec.Delete(key)
	return true, s.file.Save(rec).Err
}

func (s *JsonFileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.load()
	if err != nil {
		return nil, err
	}
	var keys []string
	for k := range rec.Fields {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

var _ Store = (*JsonFileStore)(nil)
