package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "tickets/t-1/a.txt", strings.NewReader("hello"), 5, "text/plain"))

	rc, err := store.Open(ctx, "tickets/t-1/a.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, store.Remove(ctx, "tickets/t-1/a.txt"))
	_, err = store.Open(ctx, "tickets/t-1/a.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStoreRemoveMissingIsSuccess(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Remove(context.Background(), "tickets/none/missing.bin"))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	err = store.Put(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)
}
