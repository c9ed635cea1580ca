// Package filesystem provides interfaces and constants required for filesystem implementations.
// All interesting implementations are in subpackages, e.g. github.com/diskfs/go-indexfs/filesystem/icfs
package filesystem

import "errors"

var (
	ErrNotSupported       = errors.New("method not supported by this filesystem")
	ErrReadonlyFilesystem = errors.New("read-only filesystem")
	ErrReadonlyFile       = errors.New("file handle opened read-only")
)

// FileSystem is a reference to a single filesystem on a partition
type FileSystem interface {
	// Type return the type of filesystem
	Type() Type
	// Serial get the serial of the mounted filesystem instance, or "" if none
	Serial() string
	// Flush write any cached metadata back to the partition
	Flush() error
	// Close flush the filesystem and release the underlying storage
	Close() error
}

// Type represents the type of filesystem this is
type Type int

const (
	// TypeICFS is an indexed-cluster filesystem
	TypeICFS Type = iota
)
