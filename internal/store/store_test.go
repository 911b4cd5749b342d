package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qserverless/gatewayenv/internal/crypto"
	"github.com/qserverless/gatewayenv/internal/envvars"
	"github.com/qserverless/gatewayenv/pkg/types"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEnv(scheme string, values map[string]string) *types.EncryptedBundle {
	return &types.EncryptedBundle{
		Version: types.EncryptedBundleVersion,
		Scheme:  scheme,
		Values:  values,
	}
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	env := sampleEnv(types.SchemeFernet, map[string]string{
		types.EnvGatewayToken: "gAAAAA-token",
		types.EnvJobID:        "gAAAAA-id",
	})
	require.NoError(t, s.Save(ctx, "job-1", env))

	got, err := s.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, env, got)
}

func TestSaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	require.NoError(t, s.Save(ctx, "job-1", sampleEnv(types.SchemeFernet, map[string]string{"A": "1"})))
	require.NoError(t, s.Save(ctx, "job-1", sampleEnv(types.SchemeAge, map[string]string{"B": "2", "C": "3"})))

	got, err := s.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, types.SchemeAge, got.Scheme)
	assert.Equal(t, map[string]string{"B": "2", "C": "3"}, got.Values)

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "job-1", records[0].JobID)
	assert.Equal(t, 2, records[0].Variables)
	assert.False(t, records[0].UpdatedAt.IsZero())
}

func TestLoadDeleteMissing(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	_, err := s.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "nope"), ErrNotFound)

	require.NoError(t, s.Save(ctx, "job-1", sampleEnv(types.SchemeFernet, map[string]string{"A": "1"})))
	require.NoError(t, s.Delete(ctx, "job-1"))

	_, err = s.Load(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyJobID(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	assert.ErrorIs(t, s.Save(ctx, "", sampleEnv(types.SchemeFernet, nil)), ErrEmptyJobID)
	_, err := s.Load(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyJobID)
	assert.ErrorIs(t, s.Delete(ctx, ""), ErrEmptyJobID)
	assert.Error(t, s.Save(ctx, "job-1", nil))
}

func TestListOrder(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, id, sampleEnv(types.SchemeFernet, map[string]string{"A": id})))
	}

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	seen := map[string]bool{}
	for i, r := range records {
		seen[r.JobID] = true
		if i > 0 {
			assert.False(t, r.UpdatedAt.After(records[i-1].UpdatedAt))
		}
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, seen)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "gatewayenv.db")

	codec := envvars.NewCodec(crypto.NewFernetCipher(crypto.StaticSecret("super-secret")))
	original := types.Bundle{
		types.EnvGatewayToken: types.String("42"),
		types.EnvJobArguments: types.MustParseValue(`{"answer":42}`),
	}
	enc, err := codec.EncryptBundle(original)
	require.NoError(t, err)

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "42", enc))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())

	loaded, err := s.Load(ctx, "42")
	require.NoError(t, err)

	dec, err := codec.DecryptBundle(loaded)
	require.NoError(t, err)
	assert.True(t, dec.Equal(original))
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "job-1", sampleEnv(types.SchemeFernet, map[string]string{"A": "x"})))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Save(ctx, "job-1", sampleEnv(types.SchemeFernet, map[string]string{"A": "y"})), ErrClosed)
	_, err = s.Load(ctx, "job-1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Delete(ctx, "job-1"), ErrClosed)
	_, err = s.List(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
