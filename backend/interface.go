// Package backend abstracts the host storage a volume lives on, whether a
// plain image file or a raw block device. A volume needs very little from
// its backing: positioned reads, positioned writes when it was opened
// writable, a size to derive cluster geometry from, and a close. Anything
// satisfying Storage can carry a volume; tests stub it with a byte slice.
package backend

import (
	"errors"
	"io"
)

// ErrWriteProtected is returned when writing through storage that was
// opened read-only.
var ErrWriteProtected = errors.New("storage not open for write")

// Storage is the surface a mounted volume holds on to.
type Storage interface {
	io.ReaderAt
	io.Closer
	// Size returns the byte size of the backing store, or 0 when it is
	// unknown; callers with out-of-band geometry pass it explicitly instead.
	Size() int64
	// Writable returns a positioned writer onto the same bytes, or
	// ErrWriteProtected for read-only storage.
	Writable() (io.WriterAt, error)
}
