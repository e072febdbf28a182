package dirlisting

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/dirid"
)

// ErrDirectoryIDMismatch is returned by ParseData when the directory_id
// embedded in a parsed envelope does not match the id the caller expected
// to find it under — a defense against a directory being read back under
// the wrong key/id.
var ErrDirectoryIDMismatch = errors.New("directory listing's embedded directory_id does not match expected id")

// Data is the pair a directory's envelope actually stores: its own
// directory id (self-described so a caller can detect an
// envelope-substitution mistake at parse time), the parent's directory id
// (needed to re-derive the envelope key on the next open without a round
// trip up the tree), and the directory's own listing.
type Data struct {
	DirectoryID dirid.ID `json:"directory_id"`
	ParentID    dirid.ID `json:"parent_id"`
	Listing     *Listing `json:"listing"`
}

// dataJSON mirrors Data but stores the listing pre-serialised, so the
// listingJSON ordering logic in listing.go stays the single source of
// truth for wire order.
type dataJSON struct {
	DirectoryID dirid.ID        `json:"directory_id"`
	ParentID    dirid.ID        `json:"parent_id"`
	Listing     json.RawMessage `json:"listing"`
}

// NewData builds an empty directory's data, self-describing its own id
// alongside its parent's.
func NewData(parentID dirid.ID, directoryID dirid.ID) *Data {
	return &Data{
		DirectoryID: directoryID,
		ParentID:    parentID,
		Listing:     Empty(),
	}
}

// SerialiseData renders a Data as a bytestring.
func SerialiseData(data *Data) ([]byte, error) {
	listingBytes, err := Serialise(data.Listing)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	wire := dataJSON{DirectoryID: data.DirectoryID, ParentID: data.ParentID, Listing: listingBytes}

	out, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialise directory data")
	}

	return out, nil
}

// ParseData parses a bytestring previously produced by SerialiseData,
// asserting the embedded directory_id equals expectedDirectoryID.
func ParseData(raw []byte, expectedDirectoryID dirid.ID) (*Data, error) {
	var wire dataJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.Wrap(err, "failed to parse directory data")
	}

	if wire.DirectoryID != expectedDirectoryID {
		return nil, errors.Wrap(ErrDirectoryIDMismatch, expectedDirectoryID.String())
	}

	listing, err := Parse(wire.Listing)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Data{DirectoryID: wire.DirectoryID, ParentID: wire.ParentID, Listing: listing}, nil
}
