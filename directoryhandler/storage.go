package directoryhandler

import (
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
	"github.com/eriq-augustine/vaultdrive/dirid"
	"github.com/eriq-augustine/vaultdrive/dirlisting"
	"github.com/eriq-augustine/vaultdrive/selfenc"
)

func envelopeName(directoryID dirid.ID) chunkstore.Name {
	hash := blake3.Sum256(append([]byte("vaultdrive-directory-envelope-name\x00"), directoryID[:]...))
	return chunkstore.Name(hex.EncodeToString(hash[:]))
}

// ownerDirectory is the envelope stored under a directory's own id: the
// directory listing's Data Map, encrypted and bound to (parent_id,
// directory_id), signed by the owner's private key. Matches spec.md §6's
// "owner_sign(encrypt_data_map(parent_id, directory_id, data_map))".
type ownerDirectory struct {
	EncryptedDataMap []byte `json:"encrypted_data_map"`
	Signature        []byte `json:"signature"`
}

// RetrieveFromStorage fetches the OwnerDirectory envelope stored at
// directoryID, verifies its owner signature, decrypts its Data Map (bound
// to parentID), reads the whole listing out of a Self-Encryptor built from
// that Data Map, and parses it. Grounded on
// original_source/directory_listing_handler.cc's RetrieveFromStorage.
func (this *Handler) RetrieveFromStorage(parentID, directoryID dirid.ID) (*dirlisting.Data, error) {
	envelope, err := this.getOwnerDirectory(directoryID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	dataMap, err := selfenc.DecryptDataMap(parentID, directoryID, envelope.EncryptedDataMap)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	encryptor := selfenc.NewEncryptor(this.store, dataMap)

	plaintext := make([]byte, encryptor.Size())
	if _, err := encryptor.ReadAt(plaintext, 0); err != nil {
		return nil, errors.WithStack(err)
	}

	data, err := dirlisting.ParseData(plaintext, directoryID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return data, nil
}

// getOwnerDirectory fetches and signature-checks the envelope at
// directoryID, without touching its Data Map.
func (this *Handler) getOwnerDirectory(directoryID dirid.ID) (*ownerDirectory, error) {
	raw, err := this.store.Get(envelopeName(directoryID))
	if err != nil {
		if errors.Is(err, chunkstore.ErrNotFound) {
			return nil, errors.Wrap(ErrNotFound, directoryID.String())
		}
		return nil, errors.WithStack(err)
	}

	var envelope ownerDirectory
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to parse owner directory envelope")
	}

	if !this.session.Verify(envelope.EncryptedDataMap, envelope.Signature) {
		return nil, errors.Wrap(ErrInvalidCredentials, "owner directory envelope signature does not verify")
	}

	return &envelope, nil
}

// PutToStorage serializes data, writes it in full at offset 0 through a
// fresh Self-Encryptor, flushes to obtain a Data Map, encrypts the Data Map
// bound to (data.ParentID, directoryID), wraps the ciphertext in an
// owner-signed OwnerDirectory envelope, and stores it under directoryID.
// Grounded on original_source/directory_listing_handler.cc's PutToStorage.
func (this *Handler) PutToStorage(directoryID dirid.ID, data *dirlisting.Data) error {
	plaintext, err := dirlisting.SerialiseData(data)
	if err != nil {
		return errors.WithStack(err)
	}

	encryptor := selfenc.NewEncryptor(this.store, nil)
	if _, err := encryptor.WriteAt(plaintext, 0); err != nil {
		return errors.WithStack(err)
	}

	dataMap, err := encryptor.Flush()
	if err != nil {
		if errors.Is(err, chunkstore.ErrCapacityExceeded) {
			return errors.Wrap(ErrCapacityExceeded, err.Error())
		}
		return errors.WithStack(err)
	}

	encryptedDataMap, err := selfenc.EncryptDataMap(data.ParentID, directoryID, dataMap)
	if err != nil {
		return errors.WithStack(err)
	}

	envelope := ownerDirectory{
		EncryptedDataMap: encryptedDataMap,
		Signature:        this.session.Sign(encryptedDataMap),
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, "failed to serialise owner directory envelope")
	}

	if err := this.store.Put(envelopeName(directoryID), raw); err != nil {
		if errors.Is(err, chunkstore.ErrCapacityExceeded) {
			return errors.Wrap(ErrCapacityExceeded, err.Error())
		}
		return errors.WithStack(err)
	}

	return nil
}

// DeleteStored reloads the Data Map bound to (parentID, directoryID),
// releases every chunk it references through a fresh Self-Encryptor, then
// removes the envelope itself. Grounded on
// original_source/directory_listing_handler.cc's DeleteStored.
func (this *Handler) DeleteStored(parentID, directoryID dirid.ID) error {
	envelope, err := this.getOwnerDirectory(directoryID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return errors.WithStack(err)
	}

	dataMap, err := selfenc.DecryptDataMap(parentID, directoryID, envelope.EncryptedDataMap)
	if err != nil {
		return errors.WithStack(err)
	}

	encryptor := selfenc.NewEncryptor(this.store, dataMap)
	if err := encryptor.DeleteAllChunks(); err != nil {
		return errors.WithStack(err)
	}

	err = this.store.Delete(envelopeName(directoryID))
	if err != nil && !errors.Is(err, chunkstore.ErrNotFound) {
		return errors.WithStack(err)
	}

	return nil
}
