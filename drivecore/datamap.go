package drivecore

// GetDataMap/InsertDataMap let a host transfer a whole file's content
// pointer directly instead of streaming it through Read/Write, matching
// win_drive.cc's GetDataMap/InsertDataMap pair (used there to hand a file's
// content off to another maidsafe drive without decrypting and
// re-encrypting it).

import (
	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/metadata"
	"github.com/eriq-augustine/vaultdrive/selfenc"
)

// GetDataMap returns the serialised Data Map backing the file at cleanPath.
// The Data Map itself is not encrypted: it carries the file's content key
// alongside its chunk list.
func (this *Core) GetDataMap(cleanPath string) ([]byte, error) {
	this.auxMu.Lock()
	defer this.auxMu.Unlock()

	meta, err := this.GetFileInfo(cleanPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !meta.IsFile() {
		return nil, errors.Wrap(ErrInvalidParameter, "not a file")
	}

	serialised, err := selfenc.SerialiseDataMap(meta.DataMap)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return serialised, nil
}

// InsertDataMap creates a new file at cleanPath bound directly to a
// previously exported Data Map, skipping the usual write path entirely. seed
// is an optional MetaData obtained from a prior GetDataMap-side GetFileInfo
// call; when given, its creation/access/write timestamps are carried onto
// the new entry instead of stamping it with the current time, so a transfer
// between two drives can preserve the source file's history.
func (this *Core) InsertDataMap(cleanPath string, serialisedDataMap []byte, seed *metadata.MetaData) error {
	this.auxMu.Lock()
	defer this.auxMu.Unlock()

	dataMap, err := selfenc.ParseDataMap(serialisedDataMap)
	if err != nil {
		return errors.Wrap(ErrInvalidParameter, err.Error())
	}

	parentPath, name := splitParent(cleanPath)

	meta := metadata.New(name, false, nil)
	meta.DataMap = dataMap
	meta.MarkWritten(dataMap.Size)

	if seed != nil {
		meta.CreationTime = seed.CreationTime
		meta.LastWriteTime = seed.LastWriteTime
		meta.LastAccessTime = seed.LastAccessTime
	}

	if err := this.handler.AddElement(parentPath, meta); err != nil {
		return mapStorageError(err)
	}

	return nil
}
