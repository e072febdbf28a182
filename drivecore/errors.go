package drivecore

import "github.com/eriq-augustine/vaultdrive/directoryhandler"

// Sentinel error kinds. These are the exact values directoryhandler
// returns, re-exported here so callers throughout drivecore and hostfuse
// only ever need to import one package to errors.Is against the taxonomy
// spec.md §7 defines.
var (
	ErrInvalidParameter   = directoryhandler.ErrInvalidParameter
	ErrNotFound           = directoryhandler.ErrNotFound
	ErrNotADirectory      = directoryhandler.ErrNotADirectory
	ErrPermissionDenied   = directoryhandler.ErrPermissionDenied
	ErrCapacityExceeded   = directoryhandler.ErrCapacityExceeded
	ErrUninitialised      = directoryhandler.ErrUninitialised
	ErrInvalidCredentials = directoryhandler.ErrInvalidCredentials
	ErrIOFailure          = directoryhandler.ErrIOFailure
)
