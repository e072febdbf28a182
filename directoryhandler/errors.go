package directoryhandler

import "github.com/pkg/errors"

// Sentinel error kinds, matching the taxonomy every layer above the Chunk
// Store surfaces to its caller. Wrapped with context via
// github.com/pkg/errors; callers should use errors.Is against these
// sentinels, following the teacher's typed-error style
// (driver/errors.go) adapted to Go 1.13+ error wrapping instead of
// distinct struct types per kind.
var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNotFound           = errors.New("not found")
	ErrNotADirectory      = errors.New("not a directory")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrUninitialised      = errors.New("uninitialised")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIOFailure          = errors.New("io failure")
)
