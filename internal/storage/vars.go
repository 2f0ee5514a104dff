package storage

import (
	"errors"
)

const (
	OneKB = 1 << 10

	PageSize = 4 * OneKB
)

const (
	FileMode0644 = 0o644 // rw-r--r--
	FileMode0755 = 0o755 // rwxr-xr-x
)

var (
	ErrFileNotFound        = errors.New("storage: file not found")
	ErrFileHandleNotInit   = errors.New("storage: file handle not initialized")
	ErrReadNonExistingPage = errors.New("storage: read non existing page")
	ErrReadFailed          = errors.New("storage: read failed")
	ErrWriteFailed         = errors.New("storage: write failed")
	ErrInvalidPageBuffer   = errors.New("storage: page buffer must be exactly PageSize bytes")
)
