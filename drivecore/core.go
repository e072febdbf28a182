// Package drivecore is the mounted-filesystem facade: it holds the mount
// lifecycle state machine, implements every host callback contract listed
// in spec.md §4.7, and guards the auxiliary surface (hidden files, notes,
// whole-file Data Map transfer) behind a single mutex. hostfuse is the only
// package that talks to a concrete host transport (bazil.org/fuse); it
// reaches every filesystem operation through the exported methods here.
// Grounded on original_source/include/maidsafe/drive/drive_api.h's
// Drive<Storage> facade and the teacher's driver.Driver, generalized from a
// synchronous local-disk facade to a host-callback-driven one.
package drivecore

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/eriq-augustine/golog"
	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
	"github.com/eriq-augustine/vaultdrive/directoryhandler"
	"github.com/eriq-augustine/vaultdrive/session"
)

// MountState is one stage of the mount lifecycle:
// uninitialised -> initialised -> mounted -> unmounted -> cleaned.
type MountState int

const (
	StateUninitialised MountState = iota
	StateInitialised
	StateMounted
	StateUnmounted
	StateCleaned
)

func (this MountState) String() string {
	switch this {
	case StateUninitialised:
		return "uninitialised"
	case StateInitialised:
		return "initialised"
	case StateMounted:
		return "mounted"
	case StateUnmounted:
		return "unmounted"
	case StateCleaned:
		return "cleaned"
	default:
		return "unknown"
	}
}

// VolumeSentinelSize is the large sentinel volume size reported to the
// host, matching win_drive.cc's kMaxSize-style reporting for a
// content-addressed store with no fixed physical size.
const VolumeSentinelSize uint64 = 1 << 48

// VolumeReserve is subtracted from VolumeSentinelSize so hosts that refuse
// to write at exactly-full capacity still see headroom.
const VolumeReserve uint64 = 1 << 20

// VolumeID is the fixed 32-bit identifier the host reports for this drive.
const VolumeID uint32 = 0x76445256 // "vDRV"

// HostShim is the boundary between the Drive Core and a concrete host
// filesystem transport. drivecore never imports a transport package
// directly; hostfuse is the only package that implements this interface.
type HostShim interface {
	// Configure registers the storage handle with the host and applies
	// sector-size/cache-policy settings; called once during Mount.
	Configure(driveName string, volumeID uint32) error
	// AddMountingPoint asks the host to mount the media at mountPath.
	AddMountingPoint(mountPath string) error
	// DeleteMountingPoint asks the host to remove the mounting point at
	// mountPath without tearing down the underlying storage handle.
	DeleteMountingPoint(mountPath string) error
	// RequestUnmount asks the host to gracefully release the mount.
	RequestUnmount(mountPath string) error
	// ForceUnmount tears down the mount unconditionally.
	ForceUnmount(mountPath string) error
	// DeleteStorage releases the storage handle registered by Configure.
	DeleteStorage() error
}

// Core is one mounted volume's state: the directory tree, the mount state
// machine, and the auxiliary surface. There is no process-wide singleton;
// multiple mounts are multiple Core instances.
type Core struct {
	handler *directoryhandler.Handler
	Session *session.Session
	store   chunkstore.Store

	driveName string
	mountPath string

	mountMu   sync.Mutex
	mountCond *sync.Cond
	state     MountState

	auxMu       sync.Mutex
	enumerators map[uint64]*DirectoryEnumerationContext
	nextEnumID  uint64
}

// NewCore bootstraps or recovers a Drive Core from the (keyword, pin,
// password) triple, moving the state machine from uninitialised to
// initialised.
func NewCore(store chunkstore.Store, keyword session.Keyword, pin session.Pin,
	password session.Password, driveName string) (*Core, error) {
	handler, sess, err := directoryhandler.New(store, keyword, pin, password)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	core := &Core{
		handler:     handler,
		Session:     sess,
		store:       store,
		driveName:   driveName,
		state:       StateInitialised,
		enumerators: make(map[uint64]*DirectoryEnumerationContext),
	}
	core.mountCond = sync.NewCond(&core.mountMu)

	return core, nil
}

// State reports the current mount lifecycle stage.
func (this *Core) State() MountState {
	this.mountMu.Lock()
	defer this.mountMu.Unlock()
	return this.state
}

// Mount transitions initialised -> mounted: registers the storage handle
// with the host and asks it to add the mounting point.
func (this *Core) Mount(shim HostShim, mountPath string) error {
	this.mountMu.Lock()
	defer this.mountMu.Unlock()

	if this.state != StateInitialised {
		return errors.Errorf("cannot mount from state %s", this.state)
	}

	if err := shim.Configure(this.driveName, VolumeID); err != nil {
		return errors.Wrap(ErrIOFailure, err.Error())
	}

	if err := shim.AddMountingPoint(mountPath); err != nil {
		return errors.Wrap(ErrIOFailure, err.Error())
	}

	this.mountPath = mountPath
	this.state = StateMounted
	this.mountCond.Broadcast()

	return nil
}

// WaitUntilMounted blocks until the state reaches mounted (or has already
// moved on to unmounted/cleaned), or timeout elapses. sync.Cond has no native timeout, so this races the wait against
// a context deadline via a done channel.
func (this *Core) WaitUntilMounted(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		this.mountMu.Lock()
		for this.state != StateMounted && this.state < StateUnmounted {
			this.mountCond.Wait()
		}
		this.mountMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("timed out waiting for mount")
	}
}

// WaitUntilUnmounted blocks indefinitely until the state reaches unmounted
// or cleaned.
func (this *Core) WaitUntilUnmounted() {
	this.mountMu.Lock()
	defer this.mountMu.Unlock()

	for this.state < StateUnmounted {
		this.mountCond.Wait()
	}
}

// Unmount transitions mounted -> unmounted: retries a graceful unmount
// with a 100ms back-off until deadline, then force-unmounts.
func (this *Core) Unmount(shim HostShim, deadline time.Duration) error {
	this.mountMu.Lock()
	mountPath := this.mountPath
	this.mountMu.Unlock()

	giveUpAt := time.Now().Add(deadline)
	lastErr := errors.New("no graceful unmount attempt completed before deadline")

	for time.Now().Before(giveUpAt) {
		if err := shim.DeleteMountingPoint(mountPath); err != nil {
			lastErr = err
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if err := shim.RequestUnmount(mountPath); err != nil {
			lastErr = err
			time.Sleep(100 * time.Millisecond)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		golog.WarnE("Graceful unmount did not complete before deadline, forcing.", lastErr)
		if err := shim.ForceUnmount(mountPath); err != nil {
			return errors.Wrap(ErrIOFailure, err.Error())
		}
	}

	this.mountMu.Lock()
	this.state = StateUnmounted
	this.mountCond.Broadcast()
	this.mountMu.Unlock()

	return nil
}

// OnEject is the host callback fired when the volume is ejected out from
// under the core (not via Unmount); it signals the same state transition.
func (this *Core) OnEject() {
	this.mountMu.Lock()
	this.state = StateUnmounted
	this.mountCond.Broadcast()
	this.mountMu.Unlock()
}

// Clean transitions unmounted -> cleaned: releases the storage handle.
func (this *Core) Clean(shim HostShim) error {
	this.mountMu.Lock()
	defer this.mountMu.Unlock()

	if this.state != StateUnmounted {
		return errors.Errorf("cannot clean from state %s", this.state)
	}

	if err := shim.DeleteStorage(); err != nil {
		return errors.Wrap(ErrIOFailure, err.Error())
	}

	this.state = StateCleaned
	return nil
}

// splitParent divides an absolute path into its parent directory path and
// final element name.
func splitParent(cleanPath string) (parentPath string, name string) {
	cleanPath = strings.TrimRight(cleanPath, "/")
	if cleanPath == "" {
		return "/", "/"
	}
	return path.Dir(cleanPath), path.Base(cleanPath)
}

// mapStorageError translates an error from a directoryhandler/selfenc
// mutation into the spec's error taxonomy for a host callback: a value
// already carrying one of the known sentinel kinds keeps its identity, and
// only a raw, unclassified failure (a chunk store I/O error that never
// passed through a taxonomy boundary) becomes io_failure.
func mapStorageError(err error) error {
	if err == nil {
		return nil
	}

	for _, known := range []error{
		ErrInvalidParameter, ErrNotFound, ErrNotADirectory, ErrPermissionDenied,
		ErrCapacityExceeded, ErrUninitialised, ErrInvalidCredentials, ErrIOFailure,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	if errors.Is(err, chunkstore.ErrCapacityExceeded) {
		return errors.Wrap(ErrCapacityExceeded, err.Error())
	}

	return errors.Wrap(ErrIOFailure, err.Error())
}
