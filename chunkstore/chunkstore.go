// Package chunkstore is the keyed blob store that backs every self-encrypted
// chunk, directory envelope, and bootstrap blob in the drive. Its interface
// is deliberately narrow; concrete backends (local disk, S3) live alongside
// it in this package.
package chunkstore

import (
	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get and Delete when the named blob does not
// exist.
var ErrNotFound = errors.New("chunk not found")

// ErrCapacityExceeded is returned by Put when the backend's disk-usage
// budget would be exceeded by the write.
var ErrCapacityExceeded = errors.New("chunk store capacity exceeded")

// Name is a fixed-length key identifying a stored blob (a chunk, an
// OwnerDirectory envelope, or a MID/TMID blob).
type Name string

// Store is a key-blob store addressed by fixed-length names, with a
// disk-usage budget. Every operation must be atomic; concurrent callers must
// be safe. There is no ordering guarantee across distinct names.
type Store interface {
	// Put writes bytes under name, replacing any existing value.
	// Returns ErrCapacityExceeded if the backend is full.
	Put(name Name, data []byte) error

	// Get reads the bytes stored under name.
	// Returns ErrNotFound if the name does not exist.
	Get(name Name) ([]byte, error)

	// Delete removes the blob stored under name.
	// Returns ErrNotFound if the name does not exist.
	Delete(name Name) error

	// CurrentDiskUsage reports the bytes currently occupied.
	CurrentDiskUsage() (uint64, error)

	// MaxDiskUsage reports the configured budget, or a sentinel maximum if
	// the backend does not enforce one.
	MaxDiskUsage() uint64

	// Close releases the store's cross-process lock.
	Close() error
}
