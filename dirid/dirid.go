// Package dirid holds the 64-byte opaque identity type shared by directory
// ids, the unique user id, and the root parent id. It exists on its own so
// that metadata and dirlisting can both refer to an id without importing
// each other.
package dirid

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Length is the fixed size (in bytes) of every identity in the system.
const Length = 64

// ID is an opaque 64-byte identity: a directory id, unique_user_id, or
// root_parent_id.
type ID [Length]byte

// Empty is the zero-value id, used to mean "no id".
var Empty ID

// New generates a fresh, uniformly random id.
func New() ID {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		panic(errors.Wrap(err, "failed to read random bytes for id"))
	}
	return id
}

// IsEmpty reports whether this is the zero-value id.
func (this ID) IsEmpty() bool {
	return this == Empty
}

// String renders the id as lowercase hex, safe for use as a storage key or
// filename component.
func (this ID) String() string {
	return hex.EncodeToString(this[:])
}

// Parse decodes a hex-encoded id previously produced by String.
func Parse(text string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(text)
	if err != nil {
		return id, errors.Wrap(err, "failed to decode id hex")
	}
	if len(raw) != Length {
		return id, errors.Errorf("id has wrong length: expected %d, found %d", Length, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// Bytes returns a copy of the id's raw bytes.
func (this ID) Bytes() []byte {
	rtn := make([]byte, Length)
	copy(rtn, this[:])
	return rtn
}

// FromBytes builds an id from raw bytes (which must be exactly Length long).
func FromBytes(raw []byte) (ID, error) {
	var id ID
	if len(raw) != Length {
		return id, errors.Errorf("id has wrong length: expected %d, found %d", Length, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so ids serialise as hex
// inside JSON structures (MetaData, DirectoryListing, Session).
func (this ID) MarshalText() ([]byte, error) {
	return []byte(this.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (this *ID) UnmarshalText(text []byte) error {
	id, err := Parse(string(text))
	if err != nil {
		return err
	}
	*this = id
	return nil
}
