package hostfuse

import (
	"errors"
	"syscall"

	"bazil.org/fuse"

	"github.com/eriq-augustine/vaultdrive/drivecore"
)

// translateError maps a drivecore error taxonomy value onto the errno FUSE
// expects back, following the same fuse.Errno(syscall.EXXX) pattern the
// teacher's dirent_handle.go uses for EISDIR.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, drivecore.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, drivecore.ErrInvalidParameter):
		return fuse.Errno(syscall.EINVAL)
	case errors.Is(err, drivecore.ErrNotADirectory):
		return fuse.Errno(syscall.ENOTDIR)
	case errors.Is(err, drivecore.ErrPermissionDenied):
		return fuse.Errno(syscall.EACCES)
	case errors.Is(err, drivecore.ErrCapacityExceeded):
		return fuse.Errno(syscall.ENOSPC)
	case errors.Is(err, drivecore.ErrUninitialised), errors.Is(err, drivecore.ErrInvalidCredentials):
		return fuse.Errno(syscall.EACCES)
	default:
		return fuse.EIO
	}
}
