package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vitalsbot/internal/kv"
)

func TestCacheRoundTripSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c := New(kv.NewFileStore(dir))
	require.NoError(t, c.Remember(ctx, 42, " U-7 "))

	reopened := New(kv.NewFileStore(dir))
	id, ok, err := reopened.Lookup(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "U-7", id)

	_, ok, err = reopened.Lookup(ctx, 43)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheForget(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewFileStore(t.TempDir()))

	require.NoError(t, c.Remember(ctx, 1, "a"))
	require.NoError(t, c.Remember(ctx, 2, "b"))

	existed, err := c.Forget(ctx, 1)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = c.Forget(ctx, 1)
	require.NoError(t, err)
	assert.False(t, existed)

	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{2: "b"}, all)
}

func TestCacheToleratesMissingAndCorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := New(kv.NewFileStore(dir))

	_, ok, err := c.Lookup(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, Document+".json"), []byte("{not json"), 0o600))
	_, ok, err = c.Lookup(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Remember(ctx, 5, "x"))
	id, ok, err := c.Lookup(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", id)
}
