// Package session holds the recoverable identity a (keyword, pin,
// password) triple unlocks: a unique user id, the root parent directory
// id, and an owner signing key. Grounded on
// original_source/directory_listing_handler.cc's Session/Maid pairing,
// generalized from MaidSafe's asymmetric Maid identity to a plain
// ed25519 keypair (spec.md §6's "owner envelope signature").
package session

import (
	"crypto/ed25519"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/dirid"
)

// Session is the identity recovered by successfully unsealing a TMID.
type Session struct {
	UniqueUserID dirid.ID `json:"unique_user_id"`
	RootParentID dirid.ID `json:"root_parent_id"`

	OwnerPublicKey  ed25519.PublicKey  `json:"owner_public_key"`
	OwnerPrivateKey ed25519.PrivateKey `json:"owner_private_key"`
}

// New mints a brand new Session, used on first-run bootstrap.
func New() (*Session, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate owner signing key")
	}

	return &Session{
		UniqueUserID:    dirid.New(),
		RootParentID:    dirid.New(),
		OwnerPublicKey:  publicKey,
		OwnerPrivateKey: privateKey,
	}, nil
}

// Sign signs data with the owner's private key, for envelope authenticity
// (spec.md §6).
func (this *Session) Sign(data []byte) []byte {
	return ed25519.Sign(this.OwnerPrivateKey, data)
}

// Verify checks a signature produced by Sign against the owner's public key.
func (this *Session) Verify(data []byte, signature []byte) bool {
	return ed25519.Verify(this.OwnerPublicKey, data, signature)
}

// Serialise renders a Session as a bytestring, for sealing inside a TMID.
func Serialise(session *Session) ([]byte, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialise session")
	}
	return data, nil
}

// Parse parses a bytestring previously produced by Serialise.
func Parse(data []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "failed to parse session")
	}
	return &session, nil
}
