// Package atomicfile persists a single record to one file.
//
// Save writes the encoded record to a uniquely named temporary file next to
// the destination and then renames it into place, so the destination only
// ever holds a complete old or complete new document. Load and Save never
// return errors; failures are logged and reported through outcome.Outcome.
package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevemurr/localstate/codec"
	"github.com/stevemurr/localstate/fsys"
	"github.com/stevemurr/localstate/outcome"
)

const tmpInfix = ".tmp-"

// Store owns one file.
type Store struct {
	fs    fsys.FS
	path  string
	codec codec.Codec
	log   *zap.Logger
}

// New returns a Store for path. A nil codec means codec.JSON and a nil
// logger discards output. No I/O happens until the first call.
func New(f fsys.FS, path string, c codec.Codec, log *zap.Logger) *Store {
	if c == nil {
		c = codec.JSON{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		fs:    f,
		path:  path,
		codec: c,
		log:   log.With(zap.String("path", path)),
	}
}

func (s *Store) Path() string { return s.path }

// Load reads and decodes the file. A missing file, an unreadable file and
// undecodable bytes all yield an empty record with a Defaulted outcome.
func (s *Store) Load() (codec.Record, outcome.Outcome) {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return codec.NewRecord(0), outcome.Default(nil)
		}
		err = fmt.Errorf("%w: read: %w", outcome.ErrIO, err)
		s.log.Error("state file unreadable, using defaults", zap.Error(err))
		return codec.NewRecord(0), outcome.Default(err)
	}

	rec, err := s.codec.Decode(data)
	if err != nil {
		s.log.Warn("state file corrupt, using defaults", zap.Error(err), zap.Int("bytes", len(data)))
		return codec.NewRecord(0), outcome.Default(err)
	}
	return rec, outcome.Success()
}

// Save replaces the file with rec. The rename is the only call that touches
// the destination path.
func (s *Store) Save(rec codec.Record) outcome.Outcome {
	data, err := s.codec.Encode(rec)
	if err != nil {
		s.log.Error("encode state", zap.Error(err))
		return outcome.Failure(fmt.Errorf("encode: %w", err))
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return s.fail("mkdir", err)
	}

	tmp := s.path + tmpInfix + uuid.NewString()
	if err := s.fs.WriteFile(tmp, data, 0o644); err != nil {
		s.discard(tmp)
		return s.fail("write temp", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		s.discard(tmp)
		return s.fail("rename", err)
	}
	return outcome.Success()
}

// Clear removes the file. A file that does not exist is already clear.
func (s *Store) Clear() outcome.Outcome {
	exists, err := s.fs.Exists(s.path)
	if err != nil {
		return s.fail("stat", err)
	}
	if !exists {
		return outcome.Unchanged()
	}
	err = s.fs.Remove(s.path)
	if err == nil {
		return outcome.Success()
	}
	if errors.Is(err, fs.ErrNotExist) {
		return outcome.Unchanged()
	}
	return s.fail("remove", err)
}

func (s *Store) fail(op string, err error) outcome.Outcome {
	err = fmt.Errorf("%w: %s: %w", outcome.ErrIO, op, err)
	s.log.Error("persist state failed", zap.Error(err))
	return outcome.Failure(err)
}

// discard removes a temporary file left by a failed save.
func (s *Store) discard(tmp string) {
	if err := s.fs.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Debug("remove temp file", zap.String("tmp", tmp), zap.Error(err))
	}
}
