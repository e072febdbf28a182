package selfenc

// The Data Map: the opaque descriptor a flushed Encryptor produces,
// enumerating the encrypted chunks that make up one content stream.
// Serialisation follows the teacher's encoding/json style
// (metadata/fat.go); the envelope encryption binding a directory listing's
// data map to its tree position is derived here with BLAKE3, matching
// DOMAIN STACK in SPEC_FULL.md.

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
	"github.com/eriq-augustine/vaultdrive/dirid"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32
	// NonceSize is the AES-GCM nonce size in bytes.
	NonceSize = 12
)

// ChunkInfo describes one encrypted chunk belonging to a Data Map.
type ChunkInfo struct {
	Index int             `json:"index"`
	Name  chunkstore.Name `json:"name"`
	Size  uint64          `json:"size"` // cleartext size of this chunk
	Hash  [32]byte        `json:"hash"` // blake3 hash of the cleartext chunk
}

// DataMap is the Self-Encryptor's serialisable description of a content
// stream's chunks.
type DataMap struct {
	Key    [KeySize]byte   `json:"key"`
	Nonce  [NonceSize]byte `json:"nonce"`
	Size   uint64          `json:"size"`
	Chunks []ChunkInfo     `json:"chunks"`
}

// NewDataMap creates an empty Data Map with a fresh random key and nonce,
// as used when creating a brand new file.
func NewDataMap() *DataMap {
	dataMap := &DataMap{}

	if _, err := rand.Read(dataMap.Key[:]); err != nil {
		panic(errors.Wrap(err, "failed to generate data map key"))
	}
	if _, err := rand.Read(dataMap.Nonce[:]); err != nil {
		panic(errors.Wrap(err, "failed to generate data map nonce"))
	}

	return dataMap
}

// Clone makes a deep copy, used when opening an existing file so later
// truncation/rewrites do not mutate the persisted parent-listing copy
// until close re-serialises it (spec.md §4.6).
func (this *DataMap) Clone() *DataMap {
	clone := &DataMap{
		Key:    this.Key,
		Nonce:  this.Nonce,
		Size:   this.Size,
		Chunks: make([]ChunkInfo, len(this.Chunks)),
	}
	copy(clone.Chunks, this.Chunks)
	return clone
}

// SerialiseDataMap renders a Data Map as a bytestring.
func SerialiseDataMap(dataMap *DataMap) ([]byte, error) {
	data, err := json.Marshal(dataMap)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialise data map")
	}
	return data, nil
}

// ParseDataMap parses a bytestring previously produced by SerialiseDataMap.
func ParseDataMap(data []byte) (*DataMap, error) {
	var dataMap DataMap
	if err := json.Unmarshal(data, &dataMap); err != nil {
		return nil, errors.Wrap(err, "failed to parse data map")
	}
	return &dataMap, nil
}

// DeriveEnvelopeKey derives the AES-256 key used to seal a directory's
// envelope, binding it to the directory's position in the tree
// (parentID, directoryID) as spec.md §6 requires.
func DeriveEnvelopeKey(parentID dirid.ID, directoryID dirid.ID) [KeySize]byte {
	hasher := blake3.New()
	hasher.Write([]byte("vaultdrive-directory-envelope"))
	hasher.Write(parentID[:])
	hasher.Write(directoryID[:])

	var key [KeySize]byte
	copy(key[:], hasher.Sum(nil))
	return key
}

// EncryptEnvelope seals an arbitrary plaintext payload into an envelope
// bound to (parentID, directoryID). EncryptDataMap uses it to seal a
// directory listing's Data Map.
func EncryptEnvelope(parentID dirid.ID, directoryID dirid.ID, plaintext []byte) ([]byte, error) {
	key := DeriveEnvelopeKey(parentID, directoryID)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.WithStack(err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "failed to generate envelope nonce")
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return ciphertext, nil
}

// DecryptEnvelope opens an envelope previously produced by EncryptEnvelope,
// verifying the tree binding.
func DecryptEnvelope(parentID dirid.ID, directoryID dirid.ID, ciphertext []byte) ([]byte, error) {
	key := DeriveEnvelopeKey(parentID, directoryID)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.WithStack(err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("envelope ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	sealed := ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt envelope")
	}

	return plaintext, nil
}

// EncryptDataMap seals a serialised data map into an envelope bound to
// (parentID, directoryID).
func EncryptDataMap(parentID dirid.ID, directoryID dirid.ID, dataMap *DataMap) ([]byte, error) {
	serialised, err := SerialiseDataMap(dataMap)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return EncryptEnvelope(parentID, directoryID, serialised)
}

// DecryptDataMap opens an envelope previously produced by EncryptDataMap,
// verifying the tree binding.
func DecryptDataMap(parentID dirid.ID, directoryID dirid.ID, ciphertext []byte) (*DataMap, error) {
	serialised, err := DecryptEnvelope(parentID, directoryID, ciphertext)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return ParseDataMap(serialised)
}
