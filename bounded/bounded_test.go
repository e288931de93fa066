package bounded_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stevemurr/localstate/bounded"
	"github.com/stevemurr/localstate/outcome"
	"github.com/stevemurr/localstate/store"
)

var minutes = bounded.Field{Key: "stats.total_minutes", Min: 0, Max: 1_000_000, Default: 0}

func TestClamp(t *testing.T) {
	assert.Equal(t, int64(0), bounded.Clamp(-5, 0, 10))
	assert.Equal(t, int64(10), bounded.Clamp(11, 0, 10))
	assert.Equal(t, int64(7), bounded.Clamp(7, 0, 10))
}

func TestWriteClampsBothEnds(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()

	stored, out := bounded.WriteInt(ctx, kv, minutes, -5, nil)
	assert.Equal(t, int64(0), stored)
	assert.True(t, out.OK())
	got, out := bounded.ReadInt(ctx, kv, minutes, nil)
	assert.Equal(t, int64(0), got)
	assert.Equal(t, outcome.OK, out.Status)

	stored, _ = bounded.WriteInt(ctx, kv, minutes, 2_000_000, nil)
	assert.Equal(t, int64(1_000_000), stored)
	got, _ = bounded.ReadInt(ctx, kv, minutes, nil)
	assert.Equal(t, int64(1_000_000), got)
}

func TestReadAbsentReturnsDefault(t *testing.T) {
	f := minutes
	f.Default = 15
	got, out := bounded.ReadInt(context.Background(), store.NewMemoryStore(), f, nil)
	assert.Equal(t, int64(15), got)
	assert.Equal(t, outcome.Defaulted, out.Status)
	assert.NoError(t, out.Err)
}

func TestReadRepairsOutOfRange(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.SetInt(ctx, minutes.Key, -7))
	require.NoError(t, kv.SetInt(ctx, "stats.session_count", 4))

	core, logs := observer.New(zapcore.WarnLevel)
	got, out := bounded.ReadInt(ctx, kv, minutes, zap.New(core))
	assert.Equal(t, int64(0), got)
	assert.Equal(t, outcome.Defaulted, out.Status)
	assert.ErrorIs(t, out.Err, outcome.ErrFieldCorruption)
	assert.Equal(t, 1, logs.FilterMessage("resetting corrupt field").Len())

	raw, ok, err := kv.GetInt(ctx, minutes.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), raw, "stored value overwritten with default")

	got, out = bounded.ReadInt(ctx, kv, minutes, zap.New(core))
	assert.Equal(t, int64(0), got)
	assert.Equal(t, outcome.OK, out.Status, "subsequent read is clean")
	assert.Equal(t, 1, logs.Len())

	n, _, _ := kv.GetInt(ctx, "stats.session_count")
	assert.Equal(t, int64(4), n, "other fields untouched")
}

func TestReadRepairsWrongType(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.SetString(ctx, minutes.Key, "lots"))

	got, out := bounded.ReadInt(ctx, kv, minutes, nil)
	assert.Equal(t, int64(0), got)
	assert.ErrorIs(t, out.Err, outcome.ErrFieldCorruption)
	var ce *bounded.CorruptionError
	require.ErrorAs(t, out.Err, &ce)
	assert.Equal(t, minutes.Key, ce.Key)

	raw, _, err := kv.GetInt(ctx, minutes.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), raw)
}

type brokenStore struct{ err error }

func (b brokenStore) GetInt(context.Context, string) (int64, bool, error) { return 0, false, b.err }
func (b brokenStore) SetInt(context.Context, string, int64) error         { return b.err }

func TestBackendFailures(t *testing.T) {
	ctx := context.Background()
	s := brokenStore{err: errors.New("database is locked")}

	got, out := bounded.ReadInt(ctx, s, minutes, nil)
	assert.Equal(t, int64(0), got)
	assert.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, outcome.ErrIO)

	stored, out := bounded.WriteInt(ctx, s, minutes, 5_000_000, nil)
	assert.Equal(t, int64(1_000_000), stored)
	assert.True(t, out.Failed())
}
