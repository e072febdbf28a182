// Package metadata describes one entry in a directory: either a file's
// content pointer (a Data Map) or a subdirectory pointer (a directory id),
// never both. Grounded on the teacher's dirent.Dirent (dirent/dirent.go),
// generalized to the maidsafe MetaData shape
// (original_source/src/maidsafe/drive/meta_data.h): platform attribute
// bits, allocation size distinct from end of file, and free-form notes.
package metadata

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/dirid"
	"github.com/eriq-augustine/vaultdrive/selfenc"
)

// FormatVersion guards against loading metadata written by an incompatible
// layout.
const FormatVersion = 0

// Attribute bits, modeled on the POSIX subset maidsafe's MetaData carries.
const (
	AttrDirectory uint32 = 1 << iota
	AttrReadOnly
	AttrHidden
	AttrArchive
	AttrSymlink
)

// MetaData is one directory entry: a file (with a Data Map) or a
// subdirectory (with a directory id), never both.
type MetaData struct {
	Name string `json:"name"`

	Attributes uint32 `json:"attributes"`

	CreationTime   time.Time `json:"creation_time"`
	LastWriteTime  time.Time `json:"last_write_time"`
	LastAccessTime time.Time `json:"last_access_time"`

	// EndOfFile is the logical content length; AllocationSize is the space
	// reserved for it and is always >= EndOfFile.
	EndOfFile      uint64 `json:"end_of_file"`
	AllocationSize uint64 `json:"allocation_size"`

	// Nlink is the POSIX hard-link count: 1 for a file, 2 for an empty
	// directory (itself plus its own "."), incremented by one on the
	// parent directory's own entry each time a subdirectory is added.
	Nlink uint32 `json:"nlink"`

	// Exactly one of DataMap/DirectoryID is set.
	DataMap     *selfenc.DataMap `json:"data_map,omitempty"`
	DirectoryID *dirid.ID        `json:"directory_id,omitempty"`

	// LinkTo holds the target path for a symlink entry; empty otherwise.
	LinkTo string `json:"link_to,omitempty"`

	Notes []string `json:"notes,omitempty"`
}

// New builds a fresh MetaData for a newly created entry. If isDirectory is
// true, directoryID must be non-nil and the entry carries no Data Map (and
// vice versa for a file).
func New(name string, isDirectory bool, directoryID *dirid.ID) *MetaData {
	now := time.Now()

	meta := &MetaData{
		Name:           name,
		CreationTime:   now,
		LastWriteTime:  now,
		LastAccessTime: now,
	}

	if isDirectory {
		meta.Attributes = AttrDirectory
		meta.DirectoryID = directoryID
		meta.Nlink = 2
	} else {
		meta.DataMap = selfenc.NewDataMap()
		meta.Nlink = 1
	}

	return meta
}

// IsDirectory reports whether this entry is a subdirectory pointer.
func (this *MetaData) IsDirectory() bool {
	return this.DirectoryID != nil
}

// IsFile reports whether this entry is a content pointer.
func (this *MetaData) IsFile() bool {
	return this.DataMap != nil
}

// Validate enforces the exactly-one-of invariant between DataMap and
// DirectoryID.
func (this *MetaData) Validate() error {
	hasDataMap := this.DataMap != nil
	hasDirectoryID := this.DirectoryID != nil

	if hasDataMap == hasDirectoryID {
		return errors.Errorf(
			"metadata for %q must have exactly one of data_map/directory_id set", this.Name)
	}

	if this.AllocationSize < this.EndOfFile {
		return errors.Errorf(
			"metadata for %q has allocation_size (%d) smaller than end_of_file (%d)",
			this.Name, this.AllocationSize, this.EndOfFile)
	}

	return nil
}

// MarkWritten records a content write: updates last_write_time, sets
// end_of_file to endOfFile, and raises allocation_size to match if it is
// smaller.
func (this *MetaData) MarkWritten(endOfFile uint64) {
	this.LastWriteTime = time.Now()
	this.EndOfFile = endOfFile
	if this.AllocationSize < endOfFile {
		this.AllocationSize = endOfFile
	}
}

// MarkAccessed records a content read.
func (this *MetaData) MarkAccessed() {
	this.LastAccessTime = time.Now()
}

// Touch records that a directory's own listing changed (a child was added,
// removed, or renamed), without touching its content stream.
func (this *MetaData) Touch() {
	this.LastWriteTime = time.Now()
}

// Less orders two entries by case-insensitive name, matching the
// case-insensitive uniqueness directories enforce.
func (this *MetaData) Less(other *MetaData) bool {
	return strings.ToLower(this.Name) < strings.ToLower(other.Name)
}

// Serialise renders a MetaData as a bytestring.
func Serialise(meta *MetaData) ([]byte, error) {
	if err := meta.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialise metadata")
	}

	return data, nil
}

// Parse parses a bytestring previously produced by Serialise.
func Parse(data []byte) (*MetaData, error) {
	var meta MetaData
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(err, "failed to parse metadata")
	}

	if err := meta.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	return &meta, nil
}
