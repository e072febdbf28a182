package session

// Bootstrap implements the MID/TMID recovery scheme spec.md §4.5 and §6
// describe, grounded line-for-line on the constructor in
// original_source/directory_listing_handler.cc: a login MID keyed by the
// public (keyword, pin) pair points at a TMID token; the TMID itself is
// stored under a key that also folds in that token, and its payload is the
// serialised Session sealed under the full (keyword, pin, password) via
// age's scrypt-based passphrase recipient (filippo.io/age, as used for
// passphrase-locked private key material in theanswer42-bt-go's
// internal/encryption/age.go).

import (
	"bytes"
	"encoding/hex"
	"io"

	"filippo.io/age"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/bcrypt"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
	"github.com/eriq-augustine/vaultdrive/dirid"
)

// Keyword, Pin, and Password are the three factors that together recover a
// Session, named after the maidsafe passport concepts they replace.
type Keyword string
type Pin string
type Password string

func passphrase(keyword Keyword, pin Pin, password Password) string {
	return string(keyword) + "\x00" + string(pin) + "\x00" + string(password)
}

func midName(keyword Keyword, pin Pin) chunkstore.Name {
	hash := blake3.Sum256([]byte("vaultdrive-mid\x00" + string(keyword) + "\x00" + string(pin)))
	return chunkstore.Name(hex.EncodeToString(hash[:]))
}

func tmidName(keyword Keyword, pin Pin, token dirid.ID) chunkstore.Name {
	hasher := blake3.New()
	hasher.Write([]byte("vaultdrive-tmid\x00" + string(keyword) + "\x00" + string(pin)))
	hasher.Write(token[:])
	return chunkstore.Name(hex.EncodeToString(hasher.Sum(nil)))
}

func verifierName(keyword Keyword, pin Pin) chunkstore.Name {
	hash := blake3.Sum256([]byte("vaultdrive-login-verifier\x00" + string(keyword) + "\x00" + string(pin)))
	return chunkstore.Name(hex.EncodeToString(hash[:]))
}

// Bootstrap either recovers the Session previously sealed under
// (keyword, pin, password), or - on first use of that triple - mints a
// fresh Session and seals it. The returned bool is true when the first-run
// path was taken: a new Session was minted, or minting it failed.
func Bootstrap(store chunkstore.Store, keyword Keyword, pin Pin, password Password) (*Session, bool, error) {
	mid := midName(keyword, pin)

	tokenBytes, err := store.Get(mid)
	if errors.Is(err, chunkstore.ErrNotFound) {
		newSession, err := firstRun(store, keyword, pin, password, mid)
		if err != nil {
			return nil, true, errors.WithStack(err)
		}
		return newSession, true, nil
	} else if err != nil {
		return nil, false, errors.WithStack(err)
	}

	token, err := dirid.FromBytes(tokenBytes)
	if err != nil {
		return nil, false, errors.Wrap(err, "corrupt MID token")
	}

	verifierBytes, err := store.Get(verifierName(keyword, pin))
	if err != nil {
		return nil, false, errors.Wrap(err, "MID present but login verifier missing")
	}
	if !LoginVerifier(verifierBytes).VerifyPassword(password) {
		return nil, false, errors.New("incorrect mount password")
	}

	tmid := tmidName(keyword, pin, token)
	sealed, err := store.Get(tmid)
	if err != nil {
		return nil, false, errors.Wrap(err, "MID present but TMID missing")
	}

	recovered, err := OpenTMID(sealed, passphrase(keyword, pin, password))
	if err != nil {
		return nil, false, errors.WithStack(err)
	}

	return recovered, false, nil
}

func firstRun(store chunkstore.Store, keyword Keyword, pin Pin, password Password, mid chunkstore.Name) (*Session, error) {
	newSession, err := New()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	token := dirid.New()

	sealed, err := SealTMID(newSession, passphrase(keyword, pin, password))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	verifier, err := NewLoginVerifier(password)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	tmid := tmidName(keyword, pin, token)
	if err := store.Put(tmid, sealed); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := store.Put(verifierName(keyword, pin), []byte(verifier)); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := store.Put(mid, token.Bytes()); err != nil {
		return nil, errors.WithStack(err)
	}

	return newSession, nil
}

// SealTMID serialises a Session and seals it under passphrase using age's
// scrypt-based passphrase recipient.
func SealTMID(session *Session, passphrase string) ([]byte, error) {
	serialised, err := Serialise(session)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build scrypt recipient")
	}

	var buf bytes.Buffer
	writer, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open age writer")
	}

	if _, err := writer.Write(serialised); err != nil {
		return nil, errors.Wrap(err, "failed to write sealed session")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize sealed session")
	}

	return buf.Bytes(), nil
}

// OpenTMID reverses SealTMID.
func OpenTMID(sealed []byte, passphrase string) (*Session, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build scrypt identity")
	}

	reader, err := age.Decrypt(bytes.NewReader(sealed), identity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unseal session (wrong password?)")
	}

	serialised, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read unsealed session")
	}

	return Parse(serialised)
}

// LoginVerifier is a bcrypt hash of the mount password, stored alongside a
// mount's configuration so a wrong password can be rejected before the
// (expensive) scrypt-based TMID unseal is attempted.
type LoginVerifier string

// NewLoginVerifier hashes password for storage.
func NewLoginVerifier(password Password) (LoginVerifier, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash mount password")
	}
	return LoginVerifier(hash), nil
}

// VerifyPassword checks password against a previously computed verifier.
func (this LoginVerifier) VerifyPassword(password Password) bool {
	err := bcrypt.CompareHashAndPassword([]byte(this), []byte(password))
	return err == nil
}
