package drivecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateFileThenGetFileInfo(t *testing.T) {
	core := newTestCore(t)

	meta, err := core.Create("/notes.txt", false)
	require.NoError(t, err)
	require.True(t, meta.IsFile())

	fetched, err := core.GetFileInfo("/notes.txt")
	require.NoError(t, err)
	require.Equal(t, "notes.txt", fetched.Name)
}

func TestCreateRejectsReservedName(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/CON", false)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestOpenWriteCloseRoundTripsContent(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/greeting.txt", false)
	require.NoError(t, err)

	handle, err := core.Open("/greeting.txt")
	require.NoError(t, err)

	payload := []byte("hello vault")
	n, err := core.Write(handle, payload, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	require.NoError(t, core.Close(handle))

	handle2, err := core.Open("/greeting.txt")
	require.NoError(t, err)

	dst := make([]byte, len(payload))
	n, err = core.Read(handle2, dst, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, dst)
	require.NoError(t, core.Close(handle2))
}

func TestSetAllocationSizeTruncatesContent(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/f.bin", false)
	require.NoError(t, err)

	handle, err := core.Open("/f.bin")
	require.NoError(t, err)

	_, err = core.Write(handle, []byte("0123456789"), 0)
	require.NoError(t, err)

	require.NoError(t, core.SetAllocationSize(handle, 4))
	require.NoError(t, core.Close(handle))

	meta, err := core.GetFileInfo("/f.bin")
	require.NoError(t, err)
	require.EqualValues(t, 4, meta.EndOfFile)
}

func TestCanFileBeDeletedRequiresEmptyDirectory(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/dir", true)
	require.NoError(t, err)

	ok, err := core.CanFileBeDeleted("/dir")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = core.Create("/dir/child.txt", false)
	require.NoError(t, err)

	ok, err = core.CanFileBeDeleted("/dir")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteRemovesEntry(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/gone.txt", false)
	require.NoError(t, err)

	require.NoError(t, core.Delete("/gone.txt"))

	_, err = core.GetFileInfo("/gone.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRenameOrMoveAcrossDirectories(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/src.txt", false)
	require.NoError(t, err)
	_, err = core.Create("/dest", true)
	require.NoError(t, err)

	reclaimed, err := core.RenameOrMove("/src.txt", "/dest/src.txt")
	require.NoError(t, err)
	require.Zero(t, reclaimed)

	_, err = core.GetFileInfo("/src.txt")
	require.ErrorIs(t, err, ErrNotFound)

	moved, err := core.GetFileInfo("/dest/src.txt")
	require.NoError(t, err)
	require.Equal(t, "src.txt", moved.Name)
}

func TestIsDirectoryEmpty(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/empty", true)
	require.NoError(t, err)

	empty, err := core.IsDirectoryEmpty("/empty")
	require.NoError(t, err)
	require.True(t, empty)
}
