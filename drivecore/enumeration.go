package drivecore

import (
	"regexp"

	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/dirlisting"
	"github.com/eriq-augustine/vaultdrive/metadata"
)

// DirectoryEnumerationContext holds a paused directory listing walk between
// enumerate callbacks, matching the maidsafe DirectoryListing enumeration
// cursor exposed one entry per host round trip. Hidden entries are skipped
// entirely; only names matching mask are returned.
type DirectoryEnumerationContext struct {
	id      uint64
	listing *dirlisting.Listing
	mask    *regexp.Regexp
}

// BeginEnumeration starts a masked enumeration of the directory at
// cleanPath, matching the enumerate host callback's first call.
func (this *Core) BeginEnumeration(cleanPath string, mask string) (uint64, error) {
	data, _, err := this.handler.GetFromPath(cleanPath)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	if mask == "" {
		mask = "*"
	}
	compiled, err := dirlisting.CompileMask(mask)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidParameter, err.Error())
	}

	data.Listing.ResetChildrenIterator()

	this.auxMu.Lock()
	this.nextEnumID++
	id := this.nextEnumID
	this.enumerators[id] = &DirectoryEnumerationContext{
		id:      id,
		listing: data.Listing,
		mask:    compiled,
	}
	this.auxMu.Unlock()

	return id, nil
}

// NextEnumeration returns the next non-hidden, mask-matching entry in the
// enumeration started by enumID, or (nil, false) once exhausted.
func (this *Core) NextEnumeration(enumID uint64) (*metadata.MetaData, bool, error) {
	this.auxMu.Lock()
	enumeration, ok := this.enumerators[enumID]
	this.auxMu.Unlock()
	if !ok {
		return nil, false, errors.Wrap(ErrInvalidParameter, "unknown enumeration handle")
	}

	for {
		meta, ok := enumeration.listing.GetChildAndIncrementIterator()
		if !ok {
			return nil, false, nil
		}

		if metadata.IsHidden(meta.Name) {
			continue
		}
		if !enumeration.mask.MatchString(meta.Name) {
			continue
		}

		return meta, true, nil
	}
}

// CloseEnumeration discards the state for enumID, matching the
// close_enumeration host callback.
func (this *Core) CloseEnumeration(enumID uint64) {
	this.auxMu.Lock()
	delete(this.enumerators, enumID)
	this.auxMu.Unlock()
}
