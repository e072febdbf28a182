package dirlisting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eriq-augustine/vaultdrive/dirid"
	"github.com/eriq-augustine/vaultdrive/metadata"
)

func TestDataSerialiseParseRoundTrip(t *testing.T) {
	parentID := dirid.New()
	directoryID := dirid.New()
	data := NewData(parentID, directoryID)
	require.NoError(t, data.Listing.AddChild(metadata.New("a.txt", false, nil)))

	raw, err := SerialiseData(data)
	require.NoError(t, err)

	parsed, err := ParseData(raw, directoryID)
	require.NoError(t, err)
	require.Equal(t, parentID, parsed.ParentID)
	require.Equal(t, directoryID, parsed.DirectoryID)
	require.Equal(t, 1, parsed.Listing.Count())
}

func TestParseDataRejectsMismatchedDirectoryID(t *testing.T) {
	parentID := dirid.New()
	directoryID := dirid.New()
	data := NewData(parentID, directoryID)

	raw, err := SerialiseData(data)
	require.NoError(t, err)

	_, err = ParseData(raw, dirid.New())
	require.ErrorIs(t, err, ErrDirectoryIDMismatch)
}
