package atomicfile_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stevemurr/localstate/atomicfile"
	"github.com/stevemurr/localstate/codec"
	"github.com/stevemurr/localstate/fsys"
	"github.com/stevemurr/localstate/outcome"
)

const dest = "/data/favorites.json"

func record(ids ...string) codec.Record {
	rec := codec.NewRecord(1)
	rec.SetStrings("order", ids)
	return rec
}

func order(t *testing.T, rec codec.Record) []string {
	t.Helper()
	ids, ok := rec.Strings("order")
	require.True(t, ok, "record has no order field")
	return ids
}

func TestLoadMissingFile(t *testing.T) {
	s := atomicfile.New(fsys.NewMem(), dest, nil, nil)
	rec, out := s.Load()
	assert.Equal(t, outcome.Defaulted, out.Status)
	assert.NoError(t, out.Err)
	assert.True(t, rec.IsEmpty())
}

func TestSaveThenLoad(t *testing.T) {
	mem := fsys.NewMem()
	s := atomicfile.New(mem, dest, codec.JSON{}, nil)

	require.True(t, s.Save(record("b", "a")).OK())
	rec, out := s.Load()
	require.Equal(t, outcome.OK, out.Status)
	assert.Equal(t, []string{"b", "a"}, order(t, rec))
	assert.Equal(t, 1, rec.Version)

	assert.Equal(t, []string{dest}, mem.Files(), "no temporary files left behind")
}

func TestRenameIsOnlyMutationOfDestination(t *testing.T) {
	mem := fsys.NewMem()
	s := atomicfile.New(mem, dest, nil, nil)
	require.True(t, s.Save(record("a")).OK())

	var touching []fsys.Op
	for _, op := range mem.Ops() {
		if op.Path == dest && op.Kind != fsys.OpRead {
			touching = append(touching, op)
		}
	}
	require.Len(t, touching, 1)
	assert.Equal(t, fsys.OpRename, touching[0].Kind)
	assert.True(t, strings.HasPrefix(touching[0].From, dest+".tmp-"), touching[0].From)
}

func TestInterruptedSaveLeavesOldFile(t *testing.T) {
	for _, kind := range []fsys.OpKind{fsys.OpWrite, fsys.OpRename} {
		t.Run(string(kind), func(t *testing.T) {
			mem := fsys.NewMem()
			core, logs := observer.New(zapcore.ErrorLevel)
			s := atomicfile.New(mem, dest, nil, zap.New(core))
			require.True(t, s.Save(record("old")).OK())

			killed := errors.New("process killed")
			if kind == fsys.OpRename {
				mem.FailOn(kind, dest, killed)
			} else {
				mem.FailOn(kind, "", killed)
			}
			out := s.Save(record("new", "old"))
			assert.Equal(t, outcome.Failed, out.Status)
			assert.ErrorIs(t, out.Err, outcome.ErrIO)
			assert.ErrorIs(t, out.Err, killed)
			assert.Equal(t, 1, logs.FilterMessage("persist state failed").Len())

			mem.Heal()
			rec, lout := s.Load()
			require.Equal(t, outcome.OK, lout.Status)
			assert.Equal(t, []string{"old"}, order(t, rec))
			assert.Equal(t, []string{dest}, mem.Files(), "temporary file removed after failure")
		})
	}
}

func TestInterruptedBeforeRenameFirstSave(t *testing.T) {
	mem := fsys.NewMem()
	s := atomicfile.New(mem, dest, nil, nil)
	mem.FailOn(fsys.OpRename, dest, errors.New("crash"))

	assert.True(t, s.Save(record("a")).Failed())
	ok, err := mem.Exists(dest)
	require.NoError(t, err)
	assert.False(t, ok, "destination must stay absent")
}

func TestLoadCorruptFile(t *testing.T) {
	mem := fsys.NewMem()
	mem.Put(dest, []byte(`{"order": ["a", `))
	core, logs := observer.New(zapcore.WarnLevel)
	s := atomicfile.New(mem, dest, nil, zap.New(core))

	rec, out := s.Load()
	assert.Equal(t, outcome.Defaulted, out.Status)
	assert.ErrorIs(t, out.Err, outcome.ErrDecode)
	assert.True(t, rec.IsEmpty())
	require.Equal(t, 1, logs.FilterMessage("state file corrupt, using defaults").Len())
}

func TestLoadUnreadableFile(t *testing.T) {
	mem := fsys.NewMem()
	mem.Put(dest, []byte(`{}`))
	mem.FailOn(fsys.OpRead, dest, errors.New("EIO"))
	s := atomicfile.New(mem, dest, nil, nil)

	rec, out := s.Load()
	assert.Equal(t, outcome.Defaulted, out.Status)
	assert.ErrorIs(t, out.Err, outcome.ErrIO)
	assert.True(t, rec.IsEmpty())
}

func TestSaveRejectsUnencodableRecord(t *testing.T) {
	mem := fsys.NewMem()
	s := atomicfile.New(mem, dest, nil, nil)
	rec := codec.NewRecord(1)
	rec.Fields["bad"] = 1.5

	assert.True(t, s.Save(rec).Failed())
	assert.Empty(t, mem.Files())
}

func TestClear(t *testing.T) {
	mem := fsys.NewMem()
	s := atomicfile.New(mem, dest, nil, nil)

	assert.Equal(t, outcome.Noop, s.Clear().Status)
	assert.Empty(t, mem.Ops(), "clearing a missing file touches nothing")

	require.True(t, s.Save(record("a")).OK())
	assert.Equal(t, outcome.OK, s.Clear().Status)
	assert.Empty(t, mem.Files())

	mem.Put(dest, []byte(`{}`))
	mem.FailOn(fsys.OpRemove, dest, errors.New("EPERM"))
	assert.True(t, s.Clear().Failed())
}

func TestOSFilesystem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "recent.json")
	s := atomicfile.New(fsys.OS{}, path, codec.JSON{}, nil)
	assert.Equal(t, path, s.Path())

	for i := 0; i < 5; i++ {
		require.True(t, s.Save(record("x", string(rune('a'+i)))).OK())
	}
	rec, out := s.Load()
	require.Equal(t, outcome.OK, out.Status)
	assert.Equal(t, []string{"x", "e"}, order(t, rec))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recent.json", entries[0].Name())
}
