package state_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wheelhouse/wheelhouse/internal/state"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	rec := state.Record{Session: []byte(`{"id":"u1"}`), Token: "tok-1"}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.Session, got.Session)
	assert.Equal(t, rec.Token, got.Token)
}

func TestFileStoreLoadEmpty(t *testing.T) {
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, state.ErrNoState)
}

func TestFileStoreMismatchedPairIsNoState(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, state.Record{Session: []byte(`{}`), Token: "tok"}))

	// Simulate a crash that left the identity without its token.
	require.NoError(t, os.Remove(filepath.Join(dir, "token")))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, state.ErrNoState)
}

func TestFileStoreClearIdempotent(t *testing.T) {
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, state.Record{Session: []byte(`{}`), Token: "tok"}))
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, state.ErrNoState)
}

func TestFileStoreOverwrite(t *testing.T) {
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, state.Record{Session: []byte(`{"v":1}`), Token: "tok-1"}))
	require.NoError(t, store.Save(ctx, state.Record{Session: []byte(`{"v":2}`), Token: "tok-2"}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.Token)
	assert.JSONEq(t, `{"v":2}`, string(got.Session))
}
