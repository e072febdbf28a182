package chunkstore

// A chunk store that treats a directory on local disk as the backend.
// Grounded on the teacher's connector/local.LocalConnector: same
// active-connections guard, same lock-file scheme, generalized from
// "one file per dirent" to "one file per chunk name".

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/eriq-augustine/golog"
	"github.com/pkg/errors"
)

const (
	lockFilename = ".vaultdrive.lock"
)

// Keep track of the active connections so two processes don't mount the
// same storage directory at once.
var activeLocalStores map[string]bool
var activeLocalStoresLock sync.Mutex

func init() {
	activeLocalStores = make(map[string]bool)
}

// LocalStore is a Store backed by a directory on local disk.
type LocalStore struct {
	path        string
	maxDiskSize uint64
}

// NewLocalStore opens (creating if necessary) a chunk store rooted at path.
// There should only ever be one open LocalStore per path; force clears a
// stale lock left behind by a crashed process.
func NewLocalStore(path string, maxDiskSize uint64, force bool) (*LocalStore, error) {
	activeLocalStoresLock.Lock()
	defer activeLocalStoresLock.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve local chunk store path")
	}

	if activeLocalStores[absPath] {
		return nil, errors.Errorf("cannot open two chunk stores on the same path: %s", absPath)
	}

	if err := os.MkdirAll(absPath, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create local chunk store directory")
	}

	store := &LocalStore{
		path:        absPath,
		maxDiskSize: maxDiskSize,
	}

	if err := store.lock(force); err != nil {
		return nil, errors.Wrap(err, absPath)
	}

	activeLocalStores[absPath] = true

	return store, nil
}

func (this *LocalStore) chunkPath(name Name) string {
	return filepath.Join(this.path, string(name))
}

func (this *LocalStore) Put(name Name, data []byte) error {
	usage, err := this.CurrentDiskUsage()
	if err != nil {
		return errors.WithStack(err)
	}

	if this.maxDiskSize > 0 && usage+uint64(len(data)) > this.maxDiskSize {
		if _, statErr := os.Stat(this.chunkPath(name)); statErr != nil {
			return errors.WithStack(ErrCapacityExceeded)
		}
	}

	// Write to a temp file and rename so a Put is atomic from a reader's
	// point of view.
	tempFile, err := ioutil.TempFile(this.path, "."+string(name)+".tmp-")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file for chunk write")
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to write chunk data")
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to close chunk temp file")
	}

	if err := os.Rename(tempPath, this.chunkPath(name)); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to install chunk file")
	}

	return nil
}

func (this *LocalStore) Get(name Name) ([]byte, error) {
	data, err := ioutil.ReadFile(this.chunkPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithStack(ErrNotFound)
		}
		return nil, errors.Wrap(err, "failed to read chunk file")
	}

	return data, nil
}

func (this *LocalStore) Delete(name Name) error {
	err := os.Remove(this.chunkPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.WithStack(ErrNotFound)
		}
		return errors.Wrap(err, "failed to remove chunk file")
	}

	return nil
}

func (this *LocalStore) CurrentDiskUsage() (uint64, error) {
	var total uint64

	entries, err := ioutil.ReadDir(this.path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chunk store directory")
	}

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == lockFilename {
			continue
		}

		total += uint64(entry.Size())
	}

	return total, nil
}

func (this *LocalStore) MaxDiskUsage() uint64 {
	return this.maxDiskSize
}

func (this *LocalStore) Close() error {
	activeLocalStoresLock.Lock()
	defer activeLocalStoresLock.Unlock()

	delete(activeLocalStores, this.path)

	return this.unlock()
}

func (this *LocalStore) lock(force bool) error {
	lockPath := filepath.Join(this.path, lockFilename)

	existing, err := ioutil.ReadFile(lockPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, lockPath)
	}

	if err == nil {
		if !force {
			return errors.Errorf(
				"chunk store (at %s) already owned by pid [%s]."+
					" Ensure the process is dead and remove the lock, or force the store.",
				this.path, string(existing))
		}

		golog.Warn(fmt.Sprintf("Forcing chunk store open at %s, stale lock held by pid [%s].",
			this.path, string(existing)))
	}

	return errors.Wrap(ioutil.WriteFile(lockPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0600), lockPath)
}

func (this *LocalStore) unlock() error {
	err := os.Remove(filepath.Join(this.path, lockFilename))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove lock file")
	}
	return nil
}
