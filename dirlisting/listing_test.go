package dirlisting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eriq-augustine/vaultdrive/metadata"
)

func TestAddChildRejectsCaseInsensitiveDuplicate(t *testing.T) {
	listing := Empty()

	require.NoError(t, listing.AddChild(metadata.New("Report.txt", false, nil)))
	err := listing.AddChild(metadata.New("report.TXT", false, nil))
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetChildIsCaseInsensitive(t *testing.T) {
	listing := Empty()
	require.NoError(t, listing.AddChild(metadata.New("Report.txt", false, nil)))

	meta, err := listing.GetChild("REPORT.TXT")
	require.NoError(t, err)
	require.Equal(t, "Report.txt", meta.Name)
}

func TestIterationOrderIsInsertionOrder(t *testing.T) {
	listing := Empty()
	names := []string{"c.txt", "a.txt", "b.txt"}
	for _, name := range names {
		require.NoError(t, listing.AddChild(metadata.New(name, false, nil)))
	}

	var seen []string
	for {
		meta, ok := listing.GetChildAndIncrementIterator()
		if !ok {
			break
		}
		seen = append(seen, meta.Name)
	}
	require.Equal(t, names, seen)

	listing.ResetChildrenIterator()
	meta, ok := listing.GetChildAndIncrementIterator()
	require.True(t, ok)
	require.Equal(t, "c.txt", meta.Name)
}

func TestRemoveChildUpdatesIterationOrder(t *testing.T) {
	listing := Empty()
	require.NoError(t, listing.AddChild(metadata.New("a.txt", false, nil)))
	require.NoError(t, listing.AddChild(metadata.New("b.txt", false, nil)))
	require.NoError(t, listing.RemoveChild("a.txt"))

	require.False(t, listing.HasChild("a.txt"))
	require.Equal(t, 1, listing.Count())

	meta, ok := listing.GetChildAndIncrementIterator()
	require.True(t, ok)
	require.Equal(t, "b.txt", meta.Name)
}

func TestGetHiddenChildNames(t *testing.T) {
	listing := Empty()
	require.NoError(t, listing.AddChild(metadata.New("visible.txt", false, nil)))
	require.NoError(t, listing.AddChild(metadata.New(metadata.WithHiddenExtension("secret"), false, nil)))

	hidden := listing.GetHiddenChildNames()
	require.Equal(t, []string{metadata.WithHiddenExtension("secret")}, hidden)
}

func TestListingSerialiseParseRoundTrip(t *testing.T) {
	listing := Empty()
	require.NoError(t, listing.AddChild(metadata.New("a.txt", false, nil)))
	require.NoError(t, listing.AddChild(metadata.New("b.txt", false, nil)))

	data, err := Serialise(listing)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 2, parsed.Count())

	meta, err := parsed.GetChild("a.txt")
	require.NoError(t, err)
	require.Equal(t, "a.txt", meta.Name)
}

func TestCompileMaskMatchesWildcards(t *testing.T) {
	re, err := CompileMask("*.txt")
	require.NoError(t, err)
	require.True(t, re.MatchString("Report.txt"))
	require.False(t, re.MatchString("report.pdf"))

	re, err = CompileMask("file?.dat")
	require.NoError(t, err)
	require.True(t, re.MatchString("file1.dat"))
	require.False(t, re.MatchString("file12.dat"))
}

func TestCompileMaskEscapesRegexMetacharacters(t *testing.T) {
	re, err := CompileMask("a.b")
	require.NoError(t, err)
	require.True(t, re.MatchString("a.b"))
	require.False(t, re.MatchString("axb"))
}
