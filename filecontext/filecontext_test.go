package filecontext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
	"github.com/eriq-augustine/vaultdrive/dirid"
	"github.com/eriq-augustine/vaultdrive/metadata"
)

func newTestStore(t *testing.T) chunkstore.Store {
	store, err := chunkstore.NewLocalStore(t.TempDir(), 0, false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWriteMarksChangedAndFlushUpdatesMetadata(t *testing.T) {
	store := newTestStore(t)
	meta := metadata.New("report.txt", false, nil)
	ctx := New(meta, store, dirid.New(), dirid.New())

	require.False(t, ctx.ContentChanged)

	n, err := ctx.Write([]byte("hello"), 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.True(t, ctx.ContentChanged)

	dataMap, err := ctx.Flush()
	require.NoError(t, err)
	require.NotNil(t, dataMap)
	require.False(t, ctx.ContentChanged)
	require.Equal(t, uint64(5), meta.EndOfFile)
	require.Equal(t, uint64(5), meta.AllocationSize)
}

func TestFlushIsNoOpWhenNothingChanged(t *testing.T) {
	store := newTestStore(t)
	meta := metadata.New("report.txt", false, nil)
	ctx := New(meta, store, dirid.New(), dirid.New())

	dataMap, err := ctx.Flush()
	require.NoError(t, err)
	require.Nil(t, dataMap)
}

func TestReadMarksAccessed(t *testing.T) {
	store := newTestStore(t)
	meta := metadata.New("report.txt", false, nil)
	ctx := New(meta, store, dirid.New(), dirid.New())

	_, err := ctx.Write([]byte("hello"), 0)
	require.NoError(t, err)
	_, err = ctx.Flush()
	require.NoError(t, err)

	before := meta.LastAccessTime

	buf := make([]byte, 5)
	_, err = ctx.Read(buf, 0)
	require.NoError(t, err)
	require.False(t, meta.LastAccessTime.Before(before))
}
