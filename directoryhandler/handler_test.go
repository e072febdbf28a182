package directoryhandler

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

func dirIDPtr() *dirid.ID {
	id := dirid.New()
	return &id
}

func newTestHandler(t *testing.T) *Handler {
	handler, _, err := New(newTestStore(t), "alice", "1234", "correct horse battery staple")
	require.NoError(t, err)
	return handler
}

func TestNewBootstrapsEmptyRoot(t *testing.T) {
	handler := newTestHandler(t)

	data, _, err := handler.GetFromPath("/")
	require.NoError(t, err)
	require.True(t, data.Listing.IsEmpty())
}

func TestNewRecoversSameRootAcrossBootstraps(t *testing.T) {
	store := newTestStore(t)

	handlerA, sessionA, err := New(store, "alice", "1234", "hunter2")
	require.NoError(t, err)
	require.NoError(t, handlerA.AddElement("/", metadata.New("docs", true, dirIDPtr())))

	handlerB, sessionB, err := New(store, "alice", "1234", "hunter2")
	require.NoError(t, err)

	require.Equal(t, sessionA.RootParentID, sessionB.RootParentID)

	data, _, err := handlerB.GetFromPath("/")
	require.NoError(t, err)
	require.True(t, data.Listing.HasChild("docs"))
}

func TestAddElementCreatesFileAndDirectory(t *testing.T) {
	handler := newTestHandler(t)

	fileMeta := metadata.New("hello.txt", false, nil)
	require.NoError(t, handler.AddElement("/", fileMeta))

	dirMeta := metadata.New("sub", true, dirIDPtr())
	require.NoError(t, handler.AddElement("/", dirMeta))

	data, _, err := handler.GetFromPath("/")
	require.NoError(t, err)
	require.True(t, data.Listing.HasChild("hello.txt"))
	require.True(t, data.Listing.HasChild("sub"))

	subData, _, err := handler.GetFromPath("/sub")
	require.NoError(t, err)
	require.True(t, subData.Listing.IsEmpty())
}

func TestAddElementRejectsDuplicateNameCaseInsensitively(t *testing.T) {
	handler := newTestHandler(t)

	require.NoError(t, handler.AddElement("/", metadata.New("readme.txt", false, nil)))
	err := handler.AddElement("/", metadata.New("README.TXT", false, nil))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestAddElementIncrementsParentNlinkForSubdirectory(t *testing.T) {
	handler := newTestHandler(t)

	chain, err := handler.resolveChain("/")
	require.NoError(t, err)
	rootOwnMeta, err := chain[0].Data.Listing.GetChild(rootSentinelName)
	require.NoError(t, err)
	require.Equal(t, uint32(2), rootOwnMeta.Nlink)

	require.NoError(t, handler.AddElement("/", metadata.New("sub", true, dirIDPtr())))

	chain, err = handler.resolveChain("/")
	require.NoError(t, err)
	rootOwnMeta, err = chain[0].Data.Listing.GetChild(rootSentinelName)
	require.NoError(t, err)
	require.Equal(t, uint32(3), rootOwnMeta.Nlink)
}

func TestCanDeleteFileAlwaysTrueDirectoryOnlyWhenEmpty(t *testing.T) {
	handler := newTestHandler(t)

	require.NoError(t, handler.AddElement("/", metadata.New("hello.txt", false, nil)))
	require.NoError(t, handler.AddElement("/", metadata.New("sub", true, dirIDPtr())))
	require.NoError(t, handler.AddElement("/sub", metadata.New("nested.txt", false, nil)))

	canDeleteFile, err := handler.CanDelete("/", "hello.txt")
	require.NoError(t, err)
	require.True(t, canDeleteFile)

	canDeleteNonEmptyDir, err := handler.CanDelete("/", "sub")
	require.NoError(t, err)
	require.False(t, canDeleteNonEmptyDir)

	_, err = handler.DeleteElement("/sub", "nested.txt")
	require.NoError(t, err)

	canDeleteEmptyDir, err := handler.CanDelete("/", "sub")
	require.NoError(t, err)
	require.True(t, canDeleteEmptyDir)
}

func TestDeleteElementRemovesFileAndReleasesChunks(t *testing.T) {
	handler := newTestHandler(t)

	require.NoError(t, handler.AddElement("/", metadata.New("hello.txt", false, nil)))

	deleted, err := handler.DeleteElement("/", "hello.txt")
	require.NoError(t, err)
	require.Equal(t, "hello.txt", deleted.Name)

	data, _, err := handler.GetFromPath("/")
	require.NoError(t, err)
	require.False(t, data.Listing.HasChild("hello.txt"))
}

func TestDeleteElementRemovesDirectoryAndItsEnvelope(t *testing.T) {
	handler := newTestHandler(t)

	dirMeta := metadata.New("sub", true, dirIDPtr())
	require.NoError(t, handler.AddElement("/", dirMeta))

	subDirID := *dirMeta.DirectoryID

	_, err := handler.DeleteElement("/", "sub")
	require.NoError(t, err)

	rootData, rootID, err := handler.GetFromPath("/")
	require.NoError(t, err)
	require.False(t, rootData.Listing.HasChild("sub"))

	_, err = handler.RetrieveFromStorage(rootID, subDirID)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteElementDecrementsParentNlink(t *testing.T) {
	handler := newTestHandler(t)

	require.NoError(t, handler.AddElement("/", metadata.New("sub", true, dirIDPtr())))

	chain, err := handler.resolveChain("/")
	require.NoError(t, err)
	rootOwnMeta, err := chain[0].Data.Listing.GetChild(rootSentinelName)
	require.NoError(t, err)
	require.Equal(t, uint32(3), rootOwnMeta.Nlink)

	_, err = handler.DeleteElement("/", "sub")
	require.NoError(t, err)

	chain, err = handler.resolveChain("/")
	require.NoError(t, err)
	rootOwnMeta, err = chain[0].Data.Listing.GetChild(rootSentinelName)
	require.NoError(t, err)
	require.Equal(t, uint32(2), rootOwnMeta.Nlink)
}

func TestRenameSameParentPreservesEntryUnderNewName(t *testing.T) {
	handler := newTestHandler(t)

	require.NoError(t, handler.AddElement("/", metadata.New("old.txt", false, nil)))

	reclaimed, err := handler.RenameElement("/", "old.txt", "/", "new.txt")
	require.NoError(t, err)
	require.Equal(t, uint64(0), reclaimed)

	data, _, err := handler.GetFromPath("/")
	require.NoError(t, err)
	require.False(t, data.Listing.HasChild("old.txt"))
	require.True(t, data.Listing.HasChild("new.txt"))
}

func TestRenameDifferentParentMovesEntryAndRebindsSubdirectory(t *testing.T) {
	handler := newTestHandler(t)

	require.NoError(t, handler.AddElement("/", metadata.New("a", true, dirIDPtr())))
	require.NoError(t, handler.AddElement("/", metadata.New("b", true, dirIDPtr())))
	require.NoError(t, handler.AddElement("/a", metadata.New("moveme", true, dirIDPtr())))
	require.NoError(t, handler.AddElement("/a/moveme", metadata.New("inner.txt", false, nil)))

	reclaimed, err := handler.RenameElement("/a", "moveme", "/b", "moved")
	require.NoError(t, err)
	require.Equal(t, uint64(0), reclaimed)

	aData, _, err := handler.GetFromPath("/a")
	require.NoError(t, err)
	require.False(t, aData.Listing.HasChild("moveme"))

	bData, _, err := handler.GetFromPath("/b")
	require.NoError(t, err)
	require.True(t, bData.Listing.HasChild("moved"))

	movedData, _, err := handler.GetFromPath("/b/moved")
	require.NoError(t, err)
	require.True(t, movedData.Listing.HasChild("inner.txt"))
}

func TestRenameSameParentOverwritingExistingReportsReclaimedSpace(t *testing.T) {
	handler := newTestHandler(t)

	source := metadata.New("source.txt", false, nil)
	require.NoError(t, handler.AddElement("/", source))

	target := metadata.New("target.txt", false, nil)
	target.AllocationSize = 4096
	require.NoError(t, handler.AddElement("/", target))
	require.NoError(t, handler.UpdateParentDirectoryListing("/", target))

	reclaimed, err := handler.RenameElement("/", "source.txt", "/", "target.txt")
	require.NoError(t, err)
	require.Equal(t, uint64(4096), reclaimed)
}
