package drivecore

import "github.com/pkg/errors"

// GetNotes returns the free-form notes attached to the entry at cleanPath,
// matching the get_notes host callback (original_source's MetaData::notes,
// used by callers to stash small pieces of application state alongside an
// entry without a separate side channel).
func (this *Core) GetNotes(cleanPath string) ([]string, error) {
	this.auxMu.Lock()
	defer this.auxMu.Unlock()

	meta, err := this.GetFileInfo(cleanPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return meta.Notes, nil
}

// AddNote appends note to the entry at cleanPath and persists it, matching
// the add_note host callback.
func (this *Core) AddNote(cleanPath string, note string) error {
	this.auxMu.Lock()
	defer this.auxMu.Unlock()

	parentPath, name := splitParent(cleanPath)

	meta, _, err := this.handler.ResolveEntry(parentPath, name)
	if err != nil {
		return errors.WithStack(err)
	}

	meta.Notes = append(meta.Notes, note)
	meta.Touch()

	if err := this.handler.UpdateParentDirectoryListing(parentPath, meta); err != nil {
		return mapStorageError(err)
	}

	return nil
}
