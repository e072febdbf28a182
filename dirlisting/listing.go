// Package dirlisting holds one directory's children: an ordered,
// case-insensitively-unique collection of metadata.MetaData entries plus an
// enumeration cursor. Grounded on the teacher's parallel fat/dirs maps
// (driver/io.go: this.fat, this.dirs), generalized into one cohesive type
// per directory instead of one flat filesystem-wide FAT.
package dirlisting

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/metadata"
)

// ErrAlreadyExists is returned by AddChild when a case-insensitively equal
// name is already present.
var ErrAlreadyExists = errors.New("child already exists")

// ErrNotFound is returned when a named child does not exist.
var ErrNotFound = errors.New("child not found")

// Listing is one directory's children, in insertion order, with
// case-insensitive name uniqueness.
type Listing struct {
	// order holds the lowercased keys in insertion order, so iteration is
	// stable across AddChild/RemoveChild calls that don't touch it.
	order    []string
	children map[string]*metadata.MetaData

	cursor int
}

// listingJSON is the wire shape for Serialise/Parse: a plain ordered slice,
// since JSON objects don't guarantee key order.
type listingJSON struct {
	Entries []*metadata.MetaData `json:"entries"`
}

// Empty builds a Listing with no children.
func Empty() *Listing {
	return &Listing{
		order:    make([]string, 0),
		children: make(map[string]*metadata.MetaData),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// AddChild inserts a new entry, failing if the name (case-insensitively)
// already exists.
func (this *Listing) AddChild(meta *metadata.MetaData) error {
	k := key(meta.Name)

	if _, ok := this.children[k]; ok {
		return errors.Wrap(ErrAlreadyExists, meta.Name)
	}

	this.children[k] = meta
	this.order = append(this.order, k)

	return nil
}

// RemoveChild deletes an entry by name.
func (this *Listing) RemoveChild(name string) error {
	k := key(name)

	if _, ok := this.children[k]; !ok {
		return errors.Wrap(ErrNotFound, name)
	}

	delete(this.children, k)

	for i, existing := range this.order {
		if existing == k {
			this.order = append(this.order[:i], this.order[i+1:]...)
			break
		}
	}

	if this.cursor > len(this.order) {
		this.cursor = len(this.order)
	}

	return nil
}

// UpdateChild replaces an existing entry's metadata in place, preserving
// its position in the iteration order. If resetCursor is true, the
// enumeration cursor is reset to the start (used when the update changes
// what a paused enumeration would see, e.g. a rename).
func (this *Listing) UpdateChild(meta *metadata.MetaData, resetCursor bool) error {
	k := key(meta.Name)

	if _, ok := this.children[k]; !ok {
		return errors.Wrap(ErrNotFound, meta.Name)
	}

	this.children[k] = meta

	if resetCursor {
		this.cursor = 0
	}

	return nil
}

// GetChild looks up an entry by name.
func (this *Listing) GetChild(name string) (*metadata.MetaData, error) {
	meta, ok := this.children[key(name)]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}

	return meta, nil
}

// HasChild reports whether name exists, case-insensitively.
func (this *Listing) HasChild(name string) bool {
	_, ok := this.children[key(name)]
	return ok
}

// Count returns the number of children.
func (this *Listing) Count() int {
	return len(this.order)
}

// IsEmpty reports whether this listing has no children, the removability
// predicate a directory must satisfy before it can be deleted.
func (this *Listing) IsEmpty() bool {
	return len(this.order) == 0
}

// ResetChildrenIterator rewinds the enumeration cursor to the start.
func (this *Listing) ResetChildrenIterator() {
	this.cursor = 0
}

// GetChildAndIncrementIterator returns the next child in insertion order
// and advances the cursor, or (nil, false) once every child has been
// returned.
func (this *Listing) GetChildAndIncrementIterator() (*metadata.MetaData, bool) {
	if this.cursor >= len(this.order) {
		return nil, false
	}

	meta := this.children[this.order[this.cursor]]
	this.cursor++

	return meta, true
}

// GetHiddenChildNames returns the names of every child carrying the hidden
// extension, in insertion order.
func (this *Listing) GetHiddenChildNames() []string {
	names := make([]string, 0)

	for _, k := range this.order {
		meta := this.children[k]
		if metadata.IsHidden(meta.Name) {
			names = append(names, meta.Name)
		}
	}

	return names
}

// Serialise renders a Listing as a bytestring, preserving insertion order.
func Serialise(listing *Listing) ([]byte, error) {
	wire := listingJSON{Entries: make([]*metadata.MetaData, 0, len(listing.order))}

	for _, k := range listing.order {
		wire.Entries = append(wire.Entries, listing.children[k])
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialise directory listing")
	}

	return data, nil
}

// Parse parses a bytestring previously produced by Serialise.
func Parse(data []byte) (*Listing, error) {
	var wire listingJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(err, "failed to parse directory listing")
	}

	listing := Empty()
	for _, meta := range wire.Entries {
		if err := listing.AddChild(meta); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return listing, nil
}
