package directoryhandler

import (
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/eriq-augustine/golog"

	"github.com/eriq-augustine/vaultdrive/dirid"
	"github.com/eriq-augustine/vaultdrive/dirlisting"
	"github.com/eriq-augustine/vaultdrive/metadata"
	"github.com/eriq-augustine/vaultdrive/selfenc"
)

// AddElement inserts meta as a new child of the directory at parentPath,
// creating a fresh (empty) listing for it if meta is itself a directory. On
// any storage failure the child insertion is fully reverted. Grounded on
// RootHandler::AddElement (root_handler.h): the parent's own entry (as
// filed in the grandparent's listing) is touched and, for a new
// subdirectory, its nlink is bumped; since Go listings hold *MetaData
// pointers, mutating parent.Meta in place already updates the grandparent's
// in-memory copy, so no explicit UpdateChild round trip is needed before
// re-persisting the grandparent.
func (this *Handler) AddElement(parentPath string, meta *metadata.MetaData) error {
	chain, err := this.resolveChain(parentPath)
	if err != nil {
		return errors.WithStack(err)
	}

	parent := chain[len(chain)-1]

	if err := parent.Data.Listing.AddChild(meta); err != nil {
		if errors.Is(err, dirlisting.ErrAlreadyExists) {
			return errors.Wrap(ErrInvalidParameter, err.Error())
		}
		return errors.WithStack(err)
	}

	var createdDirectory bool
	if meta.IsDirectory() {
		newDirData := dirlisting.NewData(parent.DirectoryID, *meta.DirectoryID)
		if err := this.PutToStorage(*meta.DirectoryID, newDirData); err != nil {
			parent.Data.Listing.RemoveChild(meta.Name)
			return errors.WithStack(err)
		}
		createdDirectory = true
	}

	revert := func() {
		parent.Data.Listing.RemoveChild(meta.Name)
		if createdDirectory {
			if delErr := this.DeleteStored(parent.DirectoryID, *meta.DirectoryID); delErr != nil {
				golog.WarnE("Failed to revert directory storage after failed add.", delErr)
			}
		}
	}

	var priorNlink uint32
	if parent.Meta != nil {
		priorNlink = parent.Meta.Nlink
		parent.Meta.Touch()
		if meta.IsDirectory() {
			parent.Meta.Nlink++
		}
	}

	if err := this.PutToStorage(parent.DirectoryID, parent.Data); err != nil {
		revert()
		if parent.Meta != nil {
			parent.Meta.Nlink = priorNlink
		}
		return errors.WithStack(err)
	}

	if len(chain) >= 2 {
		grandparent := chain[len(chain)-2]
		if err := this.PutToStorage(grandparent.DirectoryID, grandparent.Data); err != nil {
			revert()
			if parent.Meta != nil {
				parent.Meta.Nlink = priorNlink
			}
			if putErr := this.PutToStorage(parent.DirectoryID, parent.Data); putErr != nil {
				golog.WarnE("Failed to persist parent after reverting failed add.", putErr)
			}
			return errors.WithStack(err)
		}
	}

	return nil
}

// CanDelete reports whether the named entry may be removed: true for a
// file, or for a directory whose listing is empty.
func (this *Handler) CanDelete(parentPath string, name string) (bool, error) {
	meta, _, err := this.ResolveEntry(parentPath, name)
	if err != nil {
		return false, errors.WithStack(err)
	}

	if meta.IsFile() {
		return true, nil
	}

	data, _, err := this.GetFromPath(path.Join(parentPath, name))
	if err != nil {
		return false, errors.WithStack(err)
	}

	return data.Listing.IsEmpty(), nil
}

// deleteListingRecursive releases a directory's own envelope along with
// every descendant file's chunks and every descendant directory's
// envelope, matching delete_element's "delete its listing recursively at
// the storage layer" for a directory target.
func (this *Handler) deleteListingRecursive(parentID, directoryID dirid.ID) error {
	data, err := this.RetrieveFromStorage(parentID, directoryID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return errors.WithStack(err)
	}

	data.Listing.ResetChildrenIterator()
	for {
		child, ok := data.Listing.GetChildAndIncrementIterator()
		if !ok {
			break
		}

		if child.IsDirectory() {
			if err := this.deleteListingRecursive(directoryID, *child.DirectoryID); err != nil {
				return errors.WithStack(err)
			}
			continue
		}

		encryptor := selfenc.NewEncryptor(this.store, child.DataMap)
		if err := encryptor.DeleteAllChunks(); err != nil {
			return errors.WithStack(err)
		}
	}

	return this.DeleteStored(parentID, directoryID)
}

// DeleteElement removes the named entry from the directory at parentPath,
// releasing its storage (a file's chunks, or a directory's whole subtree)
// entirely. A failure to persist the grandparent's cached copy of the
// parent's own metadata is logged and swallowed: the removal itself has
// already committed, and the grandparent's stored copy of the parent's entry
// then keeps its old nlink and timestamp; nothing recomputes them later.
func (this *Handler) DeleteElement(parentPath string, name string) (*metadata.MetaData, error) {
	chain, err := this.resolveChain(parentPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	parent := chain[len(chain)-1]

	meta, err := parent.Data.Listing.GetChild(name)
	if err != nil {
		return nil, errors.Wrap(ErrNotFound, name)
	}

	if meta.IsDirectory() {
		if err := this.deleteListingRecursive(parent.DirectoryID, *meta.DirectoryID); err != nil {
			return nil, errors.WithStack(err)
		}
	} else {
		encryptor := selfenc.NewEncryptor(this.store, meta.DataMap)
		if err := encryptor.DeleteAllChunks(); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := parent.Data.Listing.RemoveChild(name); err != nil {
		return nil, errors.Wrap(ErrNotFound, name)
	}

	if parent.Meta != nil {
		parent.Meta.Touch()
		if meta.IsDirectory() && parent.Meta.Nlink > 0 {
			parent.Meta.Nlink--
		}
	}

	if err := this.PutToStorage(parent.DirectoryID, parent.Data); err != nil {
		return nil, errors.WithStack(err)
	}

	if len(chain) >= 2 {
		grandparent := chain[len(chain)-2]
		if err := this.PutToStorage(grandparent.DirectoryID, grandparent.Data); err != nil {
			golog.WarnE("Failed to persist grandparent metadata after delete.", err)
		}
	}

	return meta, nil
}

// UpdateParentDirectoryListing reloads the directory at parentPath, applies
// meta over its existing entry of the same name, and persists it. Used by
// filecontext.Flush's close path to write back a refreshed Data Map.
func (this *Handler) UpdateParentDirectoryListing(parentPath string, meta *metadata.MetaData) error {
	chain, err := this.resolveChain(parentPath)
	if err != nil {
		return errors.WithStack(err)
	}

	parent := chain[len(chain)-1]

	if err := parent.Data.Listing.UpdateChild(meta, true); err != nil {
		return errors.Wrap(ErrNotFound, meta.Name)
	}

	return errors.WithStack(this.PutToStorage(parent.DirectoryID, parent.Data))
}

// RenameElement moves/renames the entry named oldName in the directory at
// oldParentPath to newName in the directory at newParentPath. If a target
// with newName already exists it is removed first, and its allocation size
// is returned as reclaimedSpace. Grounded on RootHandler::RenameElement's
// same-parent/different-parent split.
func (this *Handler) RenameElement(oldParentPath, oldName, newParentPath, newName string) (
	reclaimedSpace uint64, err error) {
	if oldParentPath == newParentPath && oldName == newName {
		return 0, nil
	}

	if oldParentPath == newParentPath {
		return this.renameSameParent(oldParentPath, oldName, newName)
	}

	return this.renameDifferentParent(oldParentPath, oldName, newParentPath, newName)
}

func (this *Handler) renameSameParent(parentPath, oldName, newName string) (uint64, error) {
	chain, err := this.resolveChain(parentPath)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	parent := chain[len(chain)-1]

	meta, err := parent.Data.Listing.GetChild(oldName)
	if err != nil {
		return 0, errors.Wrap(ErrNotFound, oldName)
	}

	var reclaimed uint64

	// A case-only rename finds the entry itself under newName; that is not
	// a pre-existing target.
	if strings.ToLower(newName) != strings.ToLower(oldName) && parent.Data.Listing.HasChild(newName) {
		existing, err := parent.Data.Listing.GetChild(newName)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		reclaimed = existing.AllocationSize

		if err := parent.Data.Listing.RemoveChild(newName); err != nil {
			return 0, errors.WithStack(err)
		}
	}

	if err := parent.Data.Listing.RemoveChild(oldName); err != nil {
		return 0, errors.WithStack(err)
	}

	meta.Name = newName
	meta.Touch()
	if err := parent.Data.Listing.AddChild(meta); err != nil {
		return 0, errors.WithStack(err)
	}

	// A same-parent rename never changes nlink counts; see spec's Open
	// Questions resolution.
	if parent.Meta != nil {
		parent.Meta.Touch()
	}

	if err := this.PutToStorage(parent.DirectoryID, parent.Data); err != nil {
		return 0, errors.WithStack(err)
	}

	if len(chain) >= 2 {
		grandparent := chain[len(chain)-2]
		if err := this.PutToStorage(grandparent.DirectoryID, grandparent.Data); err != nil {
			return 0, errors.WithStack(err)
		}
	}

	return reclaimed, nil
}

func (this *Handler) renameDifferentParent(oldParentPath, oldName, newParentPath, newName string) (uint64, error) {
	oldChain, err := this.resolveChain(oldParentPath)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	newChain, err := this.resolveChain(newParentPath)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	oldParent := oldChain[len(oldChain)-1]
	newParent := newChain[len(newChain)-1]

	meta, err := oldParent.Data.Listing.GetChild(oldName)
	if err != nil {
		return 0, errors.Wrap(ErrNotFound, oldName)
	}

	if meta.IsDirectory() {
		// envelopeName is keyed only on the directory's own id, so
		// re-persisting under the same id with a new ParentID overwrites the
		// old envelope in place; no separate delete step is needed.
		movedData, err := this.RetrieveFromStorageAfterMove(oldParent.DirectoryID, newParent.DirectoryID, *meta.DirectoryID)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		if err := this.PutToStorage(*meta.DirectoryID, movedData); err != nil {
			return 0, errors.WithStack(err)
		}
	}

	if err := oldParent.Data.Listing.RemoveChild(oldName); err != nil {
		return 0, errors.WithStack(err)
	}

	var reclaimed uint64
	if newParent.Data.Listing.HasChild(newName) {
		existing, err := newParent.Data.Listing.GetChild(newName)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		reclaimed = existing.AllocationSize

		if err := newParent.Data.Listing.RemoveChild(newName); err != nil {
			return 0, errors.WithStack(err)
		}
	}

	meta.Name = newName
	meta.Touch()
	if err := newParent.Data.Listing.AddChild(meta); err != nil {
		return 0, errors.WithStack(err)
	}

	if oldParent.Meta != nil {
		oldParent.Meta.Touch()
	}
	if newParent.Meta != nil {
		newParent.Meta.Touch()
	}
	if meta.IsDirectory() {
		if oldParent.Meta != nil && oldParent.Meta.Nlink > 0 {
			oldParent.Meta.Nlink--
		}
		if newParent.Meta != nil {
			newParent.Meta.Nlink++
		}
	}

	// When the new parent is the old parent's own parent, the two chains
	// loaded that listing separately; fold the old parent's refreshed entry
	// into the new parent's copy and persist only that copy, so neither
	// write overwrites the other.
	sharedListing := len(oldChain) >= 2 && oldChain[len(oldChain)-2].DirectoryID == newParent.DirectoryID
	if sharedListing && oldParent.Meta != nil {
		if err := newParent.Data.Listing.UpdateChild(oldParent.Meta, false); err != nil {
			return 0, errors.WithStack(err)
		}
	}

	if err := this.PutToStorage(oldParent.DirectoryID, oldParent.Data); err != nil {
		return 0, errors.WithStack(err)
	}
	if err := this.PutToStorage(newParent.DirectoryID, newParent.Data); err != nil {
		return 0, errors.WithStack(err)
	}

	if len(oldChain) >= 2 && !sharedListing {
		oldGrandparent := oldChain[len(oldChain)-2]
		if err := this.PutToStorage(oldGrandparent.DirectoryID, oldGrandparent.Data); err != nil {
			return 0, errors.WithStack(err)
		}
	}

	return reclaimed, nil
}

// RetrieveFromStorageAfterMove re-reads a moved subdirectory's listing
// (still filed under its old envelope binding) so it can be re-persisted
// bound to its new parent.
func (this *Handler) RetrieveFromStorageAfterMove(oldParentID, newParentID, directoryID dirid.ID) (
	*dirlisting.Data, error) {
	data, err := this.RetrieveFromStorage(oldParentID, directoryID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	data.ParentID = newParentID
	return data, nil
}
