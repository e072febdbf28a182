package drivecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetDataMapThenInsertDataMapRecreatesFile(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/original.txt", false)
	require.NoError(t, err)

	handle, err := core.Open("/original.txt")
	require.NoError(t, err)
	_, err = core.Write(handle, []byte("payload"), 0)
	require.NoError(t, err)
	require.NoError(t, core.Close(handle))

	serialised, err := core.GetDataMap("/original.txt")
	require.NoError(t, err)

	require.NoError(t, core.InsertDataMap("/copy.txt", serialised, nil))

	handle2, err := core.Open("/copy.txt")
	require.NoError(t, err)
	dst := make([]byte, len("payload"))
	_, err = core.Read(handle2, dst, 0)
	require.NoError(t, err)
	require.Equal(t, "payload", string(dst))
	require.NoError(t, core.Close(handle2))
}

func TestInsertDataMapWithSeedPreservesSourceTimestamps(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/original.txt", false)
	require.NoError(t, err)

	handle, err := core.Open("/original.txt")
	require.NoError(t, err)
	_, err = core.Write(handle, []byte("payload"), 0)
	require.NoError(t, err)
	require.NoError(t, core.Close(handle))

	seed, err := core.GetFileInfo("/original.txt")
	require.NoError(t, err)

	serialised, err := core.GetDataMap("/original.txt")
	require.NoError(t, err)

	require.NoError(t, core.InsertDataMap("/copy.txt", serialised, seed))

	copyMeta, err := core.GetFileInfo("/copy.txt")
	require.NoError(t, err)

	require.Equal(t, seed.CreationTime, copyMeta.CreationTime)
	require.Equal(t, seed.LastWriteTime, copyMeta.LastWriteTime)
	require.Equal(t, seed.LastAccessTime, copyMeta.LastAccessTime)
}
