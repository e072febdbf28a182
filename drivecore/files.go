package drivecore

import (
	"path"
	"sync"

	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/dirid"
	"github.com/eriq-augustine/vaultdrive/filecontext"
	"github.com/eriq-augustine/vaultdrive/metadata"
)

// Handle is an open file's identity as seen by the host: a monotonically
// increasing id paired with the filecontext.Context tracking its buffered
// content. The host is responsible for presenting this id back on every
// subsequent read/write/close callback.
type Handle struct {
	ID   uint64
	Path string
	ctx  *filecontext.Context
}

var handleCounter struct {
	mu   sync.Mutex
	next uint64
}

func nextHandleID() uint64 {
	handleCounter.mu.Lock()
	defer handleCounter.mu.Unlock()
	handleCounter.next++
	return handleCounter.next
}

// GetFileInfo resolves the metadata of the entry at cleanPath, matching the
// get_file_info host callback.
func (this *Core) GetFileInfo(cleanPath string) (*metadata.MetaData, error) {
	if cleanPath == "/" {
		meta, err := this.handler.RootMetaData()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return meta, nil
	}

	parentPath, name := splitParent(cleanPath)
	meta, _, err := this.handler.ResolveEntry(parentPath, name)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return meta, nil
}

// Create adds a new file or directory at cleanPath and returns its
// metadata, matching the create host callback.
func (this *Core) Create(cleanPath string, isDirectory bool) (*metadata.MetaData, error) {
	if metadata.IsReservedName(path.Base(cleanPath)) {
		return nil, errors.Wrap(ErrInvalidParameter, cleanPath)
	}

	parentPath, name := splitParent(cleanPath)

	var directoryID *dirid.ID
	if isDirectory {
		id := dirid.New()
		directoryID = &id
	}

	meta := metadata.New(name, isDirectory, directoryID)
	if err := this.handler.AddElement(parentPath, meta); err != nil {
		return nil, mapStorageError(err)
	}

	return meta, nil
}

// Open opens an existing file at cleanPath for random-access read/write and
// returns a Handle the host must present on every subsequent callback for
// this open instance.
func (this *Core) Open(cleanPath string) (*Handle, error) {
	parentPath, name := splitParent(cleanPath)

	meta, grandparentID, parentID, err := this.handler.ResolveEntryWithLineage(parentPath, name)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if meta.IsDirectory() {
		return nil, errors.Wrap(ErrInvalidParameter, "cannot open a directory as a file")
	}

	ctx := filecontext.New(meta, this.store, grandparentID, parentID)

	return &Handle{
		ID:   nextHandleID(),
		Path: cleanPath,
		ctx:  ctx,
	}, nil
}

// Read reads up to len(dst) bytes from handle's content at offset.
func (this *Core) Read(handle *Handle, dst []byte, offset uint64) (int, error) {
	n, err := handle.ctx.Read(dst, offset)
	if err != nil {
		return n, mapStorageError(err)
	}
	return n, nil
}

// Write writes src into handle's content at offset.
func (this *Core) Write(handle *Handle, src []byte, offset uint64) (int, error) {
	n, err := handle.ctx.Write(src, offset)
	if err != nil {
		return n, mapStorageError(err)
	}
	return n, nil
}

// SetAllocationSize truncates or extends handle's content to size, matching
// the set_allocation_size/set_end_of_file host callbacks.
func (this *Core) SetAllocationSize(handle *Handle, size uint64) error {
	if err := handle.ctx.Truncate(size); err != nil {
		return mapStorageError(err)
	}
	return nil
}

// Close flushes handle's pending content and writes the refreshed metadata
// back into its parent's listing, matching the close host callback.
func (this *Core) Close(handle *Handle) error {
	if _, err := handle.ctx.Flush(); err != nil {
		return mapStorageError(err)
	}

	parentPath, _ := splitParent(handle.Path)
	if err := this.handler.UpdateParentDirectoryListing(parentPath, handle.ctx.MetaData); err != nil {
		return mapStorageError(err)
	}

	return nil
}

// SetFileAttributes overwrites the platform attribute bits of the entry at
// cleanPath.
func (this *Core) SetFileAttributes(cleanPath string, attributes uint32) error {
	parentPath, name := splitParent(cleanPath)

	meta, _, err := this.handler.ResolveEntry(parentPath, name)
	if err != nil {
		return errors.WithStack(err)
	}

	meta.Attributes = attributes
	meta.Touch()

	if err := this.handler.UpdateParentDirectoryListing(parentPath, meta); err != nil {
		return mapStorageError(err)
	}

	return nil
}

// CanFileBeDeleted reports whether the entry at cleanPath may be removed.
func (this *Core) CanFileBeDeleted(cleanPath string) (bool, error) {
	parentPath, name := splitParent(cleanPath)
	ok, err := this.handler.CanDelete(parentPath, name)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return ok, nil
}

// Delete removes the entry at cleanPath, matching the delete host callback.
func (this *Core) Delete(cleanPath string) error {
	parentPath, name := splitParent(cleanPath)

	if _, err := this.handler.DeleteElement(parentPath, name); err != nil {
		return mapStorageError(err)
	}

	return nil
}

// RenameOrMove moves/renames oldPath to newPath, returning any space
// reclaimed by overwriting an existing target.
func (this *Core) RenameOrMove(oldPath, newPath string) (uint64, error) {
	if metadata.IsReservedName(path.Base(newPath)) {
		return 0, errors.Wrap(ErrInvalidParameter, newPath)
	}

	oldParentPath, oldName := splitParent(oldPath)
	newParentPath, newName := splitParent(newPath)

	reclaimed, err := this.handler.RenameElement(oldParentPath, oldName, newParentPath, newName)
	if err != nil {
		return 0, mapStorageError(err)
	}

	return reclaimed, nil
}

// IsDirectoryEmpty reports whether the directory at cleanPath has no
// children.
func (this *Core) IsDirectoryEmpty(cleanPath string) (bool, error) {
	data, _, err := this.handler.GetFromPath(cleanPath)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return data.Listing.IsEmpty(), nil
}
