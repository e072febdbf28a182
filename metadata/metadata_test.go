package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eriq-augustine/vaultdrive/dirid"
)

func TestNewFileHasDataMapOnly(t *testing.T) {
	meta := New("report.txt", false, nil)
	require.True(t, meta.IsFile())
	require.False(t, meta.IsDirectory())
	require.NoError(t, meta.Validate())
}

func TestNewDirectoryHasDirectoryIDOnly(t *testing.T) {
	id := dirid.New()
	meta := New("subdir", true, &id)
	require.True(t, meta.IsDirectory())
	require.False(t, meta.IsFile())
	require.NoError(t, meta.Validate())
}

func TestValidateRejectsBothOrNeither(t *testing.T) {
	id := dirid.New()

	neither := &MetaData{Name: "x"}
	require.Error(t, neither.Validate())

	both := New("x", true, &id)
	both.DataMap = nil
	both.DirectoryID = &id
	require.NoError(t, both.Validate())

	both.DataMap = New("y", false, nil).DataMap
	require.Error(t, both.Validate())
}

func TestValidateRejectsAllocationSizeBelowEndOfFile(t *testing.T) {
	meta := New("x", false, nil)
	meta.EndOfFile = 100
	meta.AllocationSize = 10
	require.Error(t, meta.Validate())
}

func TestSerialiseParseRoundTrip(t *testing.T) {
	meta := New("report.txt", false, nil)
	meta.MarkWritten(42)

	data, err := Serialise(meta)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, meta.Name, parsed.Name)
	require.Equal(t, meta.EndOfFile, parsed.EndOfFile)
	require.Equal(t, meta.DataMap.Key, parsed.DataMap.Key)
}

func TestMarkWrittenAndMarkAccessed(t *testing.T) {
	meta := New("report.txt", false, nil)
	before := meta.LastWriteTime

	meta.MarkWritten(10)
	require.Equal(t, uint64(10), meta.EndOfFile)
	require.Equal(t, uint64(10), meta.AllocationSize)
	require.False(t, meta.LastWriteTime.Before(before))

	accessedBefore := meta.LastAccessTime
	meta.MarkAccessed()
	require.False(t, meta.LastAccessTime.Before(accessedBefore))
}

func TestLessIsCaseInsensitive(t *testing.T) {
	a := New("apple.txt", false, nil)
	b := New("Banana.txt", false, nil)
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}

func TestIsReservedName(t *testing.T) {
	require.True(t, IsReservedName("con"))
	require.True(t, IsReservedName("CON.txt"))
	require.True(t, IsReservedName("com1"))
	require.True(t, IsReservedName("com1.dat"))
	require.False(t, IsReservedName("com0"))
	require.True(t, IsReservedName("clock$"))
	require.True(t, IsReservedName("bad/name"))
	require.False(t, IsReservedName("normal_file.txt"))
}

func TestHiddenExtensionHelpers(t *testing.T) {
	require.False(t, IsHidden("notes.txt"))
	hidden := WithHiddenExtension("notes.txt")
	require.True(t, IsHidden(hidden))
	require.Equal(t, hidden, WithHiddenExtension(hidden))
}
