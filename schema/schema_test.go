package schema_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/localstate/codec"
	"github.com/stevemurr/localstate/outcome"
	"github.com/stevemurr/localstate/schema"
	"github.com/stevemurr/localstate/store"
)

func TestDecide(t *testing.T) {
	g := schema.NewGuard(3, nil, nil)
	tests := []struct {
		stored  int
		present bool
		want    schema.Decision
	}{
		{0, false, schema.Stamp},
		{0, true, schema.Stamp},
		{3, true, schema.Current},
		{2, true, schema.Migrate},
		{4, true, schema.Reset},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, g.Decide(tc.stored, tc.present), "stored=%d present=%v", tc.stored, tc.present)
	}
	assert.Equal(t, "migrate", schema.Migrate.String())
}

func TestEnsureVersionStampsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	m := schema.KeyMarker{Store: kv, Key: "stats.schema_version"}
	g := schema.NewGuard(2, nil, nil)

	d, out := g.EnsureVersion(ctx, m, nil)
	assert.Equal(t, schema.Stamp, d)
	assert.Equal(t, outcome.OK, out.Status)

	v, ok, err := kv.GetInt(ctx, "stats.schema_version")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), v)

	d, out = g.EnsureVersion(ctx, m, nil)
	assert.Equal(t, schema.Current, d)
	assert.Equal(t, outcome.Noop, out.Status)
}

func TestEnsureVersionOlderKeepsData(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.SetInt(ctx, "v", 1))
	require.NoError(t, kv.SetInt(ctx, "stats.total_minutes", 40))

	resetCalled := false
	d, out := schema.NewGuard(2, nil, nil).EnsureVersion(ctx, schema.KeyMarker{Store: kv, Key: "v"},
		func(context.Context) error { resetCalled = true; return nil })
	assert.Equal(t, schema.Migrate, d)
	assert.True(t, out.OK())
	assert.False(t, resetCalled)

	n, _, _ := kv.GetInt(ctx, "stats.total_minutes")
	assert.Equal(t, int64(40), n)
}

func TestEnsureVersionNewerResets(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.SetInt(ctx, "v", 9))

	resetCalled := false
	d, out := schema.NewGuard(2, nil, nil).EnsureVersion(ctx, schema.KeyMarker{Store: kv, Key: "v"},
		func(context.Context) error { resetCalled = true; return nil })
	assert.Equal(t, schema.Reset, d)
	assert.Equal(t, outcome.Defaulted, out.Status)
	assert.True(t, resetCalled)

	v, _, _ := kv.GetInt(ctx, "v")
	assert.Equal(t, int64(2), v)
}

func TestEnsureVersionResetFailure(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.SetInt(ctx, "v", 9))

	_, out := schema.NewGuard(2, nil, nil).EnsureVersion(ctx, schema.KeyMarker{Store: kv, Key: "v"},
		func(context.Context) error { return errors.New("locked") })
	assert.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, outcome.ErrIO)
}

func TestEnsureVersionCorruptMarker(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.SetString(ctx, "v", "two"))

	d, out := schema.NewGuard(2, nil, nil).EnsureVersion(ctx, schema.KeyMarker{Store: kv, Key: "v"}, nil)
	assert.Equal(t, schema.Stamp, d)
	assert.True(t, out.OK())

	v, _, err := kv.GetInt(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestApplyRecord(t *testing.T) {
	t.Run("absent version is stamped", func(t *testing.T) {
		rec := codec.NewRecord(0)
		rec.SetStrings("order", []string{"a"})
		got, d := schema.NewGuard(1, nil, nil).ApplyRecord(rec)
		assert.Equal(t, schema.Stamp, d)
		assert.Equal(t, 1, got.Version)
		assert.True(t, got.Has("order"))
	})

	t.Run("older runs migration", func(t *testing.T) {
		migrate := func(from int, data codec.Record) (codec.Record, error) {
			assert.Equal(t, 1, from)
			if ids, ok := data.Strings("favorites"); ok {
				data.SetStrings("order", ids)
				data.Delete("favorites")
			}
			return data, nil
		}
		rec := codec.NewRecord(1)
		rec.SetStrings("favorites", []string{"a", "b"})

		got, d := schema.NewGuard(2, migrate, nil).ApplyRecord(rec)
		assert.Equal(t, schema.Migrate, d)
		assert.Equal(t, 2, got.Version)
		ids, _ := got.Strings("order")
		assert.Equal(t, []string{"a", "b"}, ids)
		assert.True(t, rec.Has("favorites"), "input record is not modified")
	})

	t.Run("older without migration keeps fields", func(t *testing.T) {
		rec := codec.NewRecord(1)
		rec.SetInt("n", 4)
		got, d := schema.NewGuard(2, nil, nil).ApplyRecord(rec)
		assert.Equal(t, schema.Migrate, d)
		n, _ := got.Int("n")
		assert.Equal(t, int64(4), n)
	})

	t.Run("failed migration resets", func(t *testing.T) {
		rec := codec.NewRecord(1)
		rec.SetInt("n", 4)
		fail := func(int, codec.Record) (codec.Record, error) { return codec.Record{}, errors.New("bad") }
		got, d := schema.NewGuard(2, fail, nil).ApplyRecord(rec)
		assert.Equal(t, schema.Reset, d)
		assert.True(t, got.IsEmpty())
		assert.Equal(t, 2, got.Version)
	})

	t.Run("newer resets", func(t *testing.T) {
		rec := codec.NewRecord(5)
		rec.SetInt("n", 4)
		got, d := schema.NewGuard(2, nil, nil).ApplyRecord(rec)
		assert.Equal(t, schema.Reset, d)
		assert.True(t, got.IsEmpty())
		assert.Equal(t, 2, got.Version)
	})
}
