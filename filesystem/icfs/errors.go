package icfs

import "errors"

var (
	// ErrDiskFull is returned when no free cluster is left to allocate.
	ErrDiskFull = errors.New("no free clusters left on volume")
	// ErrOutOfRange is returned for a position beyond the end of a file.
	ErrOutOfRange = errors.New("position out of range")
	// ErrInvalidMode is returned for an open mode other than 'r', 'w' or 'a'.
	ErrInvalidMode = errors.New("invalid open mode")
	// ErrFileTooLarge is returned when a write would push a file past the
	// capacity of its two index levels.
	ErrFileTooLarge = errors.New("file size exceeds two-level index capacity")
)
