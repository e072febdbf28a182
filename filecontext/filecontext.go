// Package filecontext holds the per-open-file handle state: a mutable
// in-memory copy of a directory entry's metadata plus the Self-Encryptor
// bound to its content, tracked with a dirty bit so Flush only commits a
// new Data Map when something actually changed. Grounded on the
// maidsafe FileContext struct (original_source utils.h) and the teacher's
// mutable-metadata-plus-dirty-write access pattern in cache/cache.go and
// driver/io.go.
package filecontext

import (
	"github.com/eriq-augustine/vaultdrive/chunkstore"
	"github.com/eriq-augustine/vaultdrive/dirid"
	"github.com/eriq-augustine/vaultdrive/metadata"
	"github.com/eriq-augustine/vaultdrive/selfenc"
)

// Context is one open file handle's mutable state.
type Context struct {
	MetaData  *metadata.MetaData
	Encryptor *selfenc.Encryptor

	// ContentChanged is set once a write or truncate touches the backing
	// Encryptor, and cleared by Flush once the Encryptor has committed the
	// content to a new Data Map.
	ContentChanged bool

	// GrandparentDirectoryID/ParentDirectoryID are the directory ids
	// captured at open time. drivecore.Core.Close does not consult them: it
	// finds the parent listing by the handle's path.
	GrandparentDirectoryID dirid.ID
	ParentDirectoryID      dirid.ID
}

// New opens a context over an existing file's metadata.
func New(meta *metadata.MetaData, store chunkstore.Store, grandparentID, parentID dirid.ID) *Context {
	// The Encryptor works on a copy, so truncation and rewrites leave
	// meta.DataMap untouched until Flush replaces it.
	dataMap := meta.DataMap
	if dataMap != nil {
		dataMap = dataMap.Clone()
	}

	return &Context{
		MetaData:               meta,
		Encryptor:              selfenc.NewEncryptor(store, dataMap),
		GrandparentDirectoryID: grandparentID,
		ParentDirectoryID:      parentID,
	}
}

// MarkContentChanged flags that a write or truncate has touched this
// handle's content, so Flush knows to persist a new Data Map on close.
func (this *Context) MarkContentChanged() {
	this.ContentChanged = true
}

// Flush commits pending content writes and reconciles the metadata's
// end_of_file/allocation_size (allocation_size never falls below
// end_of_file) and last_write_time. Returns the finalized Data Map, or nil
// if nothing changed.
func (this *Context) Flush() (*selfenc.DataMap, error) {
	if !this.ContentChanged {
		return nil, nil
	}

	dataMap, err := this.Encryptor.Flush()
	if err != nil {
		return nil, err
	}

	this.MetaData.DataMap = dataMap
	this.MetaData.MarkWritten(this.Encryptor.Size())
	this.ContentChanged = false

	return dataMap, nil
}

// Read marks the metadata as accessed and delegates to the Encryptor.
func (this *Context) Read(dst []byte, offset uint64) (int, error) {
	n, err := this.Encryptor.ReadAt(dst, offset)
	if err == nil {
		this.MetaData.MarkAccessed()
	}
	return n, err
}

// Write delegates to the Encryptor and marks content as changed.
func (this *Context) Write(src []byte, offset uint64) (int, error) {
	n, err := this.Encryptor.WriteAt(src, offset)
	if err == nil {
		this.MarkContentChanged()
	}
	return n, err
}

// Truncate delegates to the Encryptor and marks content as changed.
func (this *Context) Truncate(size uint64) error {
	err := this.Encryptor.Truncate(size)
	if err == nil {
		this.MarkContentChanged()
	}
	return err
}
