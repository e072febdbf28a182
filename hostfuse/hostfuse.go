// Package hostfuse is the only package that imports bazil.org/fuse: it
// implements drivecore.HostShim on top of a real FUSE mount, and adapts
// every fs.Node/fs.Handle callback bazil.org/fuse dispatches into calls on
// a drivecore.Core. Grounded on the teacher's bin/elfs-fuse/main.go mount
// setup and generalized, node-and-handle-wise, from rclone-rclone's
// cmd/mount/{dir,file,read,write}.go read/write file handle split.
package hostfuse

import (
	"os"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/drivecore"
)

// Shim implements drivecore.HostShim over bazil.org/fuse.
type Shim struct {
	driveName string
	conn      *fuse.Conn
}

// NewShim builds a Shim reporting driveName to the host.
func NewShim(driveName string) *Shim {
	return &Shim{driveName: driveName}
}

// Configure is a no-op for FUSE: there is no separate storage-handle
// registration step distinct from the mount itself.
func (this *Shim) Configure(driveName string, volumeID uint32) error {
	this.driveName = driveName
	return nil
}

// AddMountingPoint mounts the FUSE filesystem at mountPath. Serving is
// started separately by the caller via Serve, once the Core is ready to
// answer callbacks.
func (this *Shim) AddMountingPoint(mountPath string) error {
	if err := os.MkdirAll(mountPath, 0700); err != nil {
		return errors.Wrap(err, "failed to create mount point")
	}

	conn, err := fuse.Mount(
		mountPath,
		fuse.FSName(this.driveName),
		fuse.Subtype("vaultdrive"),
		fuse.LocalVolume(),
		fuse.VolumeName(this.driveName),
		fuse.NoAppleDouble(),
		fuse.NoAppleXattr(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to mount")
	}

	this.conn = conn
	return nil
}

// DeleteMountingPoint asks the OS to unmount mountPath gracefully.
func (this *Shim) DeleteMountingPoint(mountPath string) error {
	return fuse.Unmount(mountPath)
}

// RequestUnmount closes the FUSE connection, unblocking Serve.
func (this *Shim) RequestUnmount(mountPath string) error {
	if this.conn == nil {
		return nil
	}
	return this.conn.Close()
}

// ForceUnmount is the same operation as RequestUnmount for a local FUSE
// mount; there is no separate forced path exposed by bazil.org/fuse beyond
// closing the connection and re-issuing the unmount syscall.
func (this *Shim) ForceUnmount(mountPath string) error {
	_ = fuse.Unmount(mountPath)
	if this.conn == nil {
		return nil
	}
	return this.conn.Close()
}

// DeleteStorage is a no-op: the Chunk Store backing the Core is owned and
// closed by the caller of drivecore.NewCore, not by the host shim.
func (this *Shim) DeleteStorage() error {
	return nil
}

// Serve blocks, dispatching every FUSE callback to core, until the mount is
// unmounted. Call it after Core.Mount succeeds.
func (this *Shim) Serve(core *drivecore.Core) error {
	if this.conn == nil {
		return errors.New("mount point not established")
	}

	if err := fusefs.Serve(this.conn, &FS{core: core}); err != nil {
		return errors.Wrap(err, "failed to serve filesystem")
	}

	<-this.conn.Ready
	if err := this.conn.MountError; err != nil {
		return errors.Wrap(err, "mount reported an error")
	}

	return nil
}

var _ drivecore.HostShim = (*Shim)(nil)
