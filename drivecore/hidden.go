package drivecore

// Hidden files are ordinary directory entries carrying the
// metadata.HiddenExtension suffix; they are stored, chunked and
// content-addressed exactly like any other file, and differ only in that
// normal enumeration skips them (see NextEnumeration). Grounded on
// win_drive.cc's hidden-file surface.

import (
	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/metadata"
)

// SearchHiddenFiles lists the hidden entries directly inside the directory
// at cleanPath, matching the search_hidden_files host callback.
func (this *Core) SearchHiddenFiles(cleanPath string) ([]string, error) {
	this.auxMu.Lock()
	defer this.auxMu.Unlock()

	data, _, err := this.handler.GetFromPath(cleanPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return data.Listing.GetHiddenChildNames(), nil
}

// ReadHiddenFile opens the hidden counterpart of cleanPath (cleanPath with
// the hidden extension appended when absent), failing if no such entry
// exists. The entry at cleanPath itself is not examined.
func (this *Core) ReadHiddenFile(cleanPath string) (*Handle, error) {
	this.auxMu.Lock()
	defer this.auxMu.Unlock()

	return this.openHidden(cleanPath)
}

// WriteHiddenFile opens (creating if necessary) a hidden file for writing.
func (this *Core) WriteHiddenFile(cleanPath string) (*Handle, error) {
	this.auxMu.Lock()
	defer this.auxMu.Unlock()

	parentPath, name := splitParent(cleanPath)
	hiddenName := metadata.WithHiddenExtension(name)

	_, _, err := this.handler.ResolveEntry(parentPath, hiddenName)
	if errors.Is(err, ErrNotFound) {
		meta := metadata.New(hiddenName, false, nil)
		meta.Attributes |= metadata.AttrHidden
		if err := this.handler.AddElement(parentPath, meta); err != nil {
			return nil, mapStorageError(err)
		}
	} else if err != nil {
		return nil, errors.WithStack(err)
	}

	return this.openHidden(joinParent(parentPath, hiddenName))
}

func (this *Core) openHidden(cleanPath string) (*Handle, error) {
	parentPath, name := splitParent(cleanPath)
	hiddenName := metadata.WithHiddenExtension(name)

	handle, err := this.Open(joinParent(parentPath, hiddenName))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return handle, nil
}

// DeleteHiddenFile removes the hidden counterpart of cleanPath.
func (this *Core) DeleteHiddenFile(cleanPath string) error {
	this.auxMu.Lock()
	defer this.auxMu.Unlock()

	parentPath, name := splitParent(cleanPath)
	hiddenName := metadata.WithHiddenExtension(name)

	if _, err := this.handler.DeleteElement(parentPath, hiddenName); err != nil {
		return mapStorageError(err)
	}

	return nil
}

func joinParent(parentPath, name string) string {
	if parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}
