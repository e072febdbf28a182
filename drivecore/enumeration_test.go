package drivecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnumerationSkipsHiddenAndAppliesMask(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/a.txt", false)
	require.NoError(t, err)
	_, err = core.Create("/b.log", false)
	require.NoError(t, err)

	handle, err := core.WriteHiddenFile("/a.txt")
	require.NoError(t, err)
	require.NoError(t, core.Close(handle))

	enumID, err := core.BeginEnumeration("/", "*.txt")
	require.NoError(t, err)
	defer core.CloseEnumeration(enumID)

	var names []string
	for {
		meta, ok, err := core.NextEnumeration(enumID)
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, meta.Name)
	}

	require.Equal(t, []string{"a.txt"}, names)
}

func TestSearchHiddenFilesFindsHiddenCounterpart(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/a.txt", false)
	require.NoError(t, err)

	handle, err := core.WriteHiddenFile("/a.txt")
	require.NoError(t, err)
	require.NoError(t, core.Close(handle))

	names, err := core.SearchHiddenFiles("/")
	require.NoError(t, err)
	require.Len(t, names, 1)
	require.Contains(t, names[0], "a.txt")
}
