package drivecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddNoteThenGetNotes(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Create("/f.txt", false)
	require.NoError(t, err)

	require.NoError(t, core.AddNote("/f.txt", "reviewed"))
	require.NoError(t, core.AddNote("/f.txt", "shared with team"))

	notes, err := core.GetNotes("/f.txt")
	require.NoError(t, err)
	require.Equal(t, []string{"reviewed", "shared with team"}, notes)
}
