// Package indexfs implements methods for creating and manipulating
// indexed-cluster filesystems on disk images and block devices.
//
// The filesystem itself lives in github.com/diskfs/go-indexfs/filesystem/icfs;
// this package wires a path on the host up to it. It does **not** mount
// anything through the operating system, it manipulates the bytes directly.
//
// Create a 10MB image with a fresh filesystem:
//
//	import indexfs "github.com/diskfs/go-indexfs"
//
//	fs, err := indexfs.Create("/tmp/vol.img", 10*1024*1024)
//
// Reopen it later, write a file and read it back:
//
//	fs, err := indexfs.Open("/tmp/vol.img", false)
//	first, err := fs.NewFileIndex()
//	fl, err := fs.OpenFile(icfs.Entry{Index: first}, icfs.ModeWrite)
//	_, err = fl.Write([]byte("hello"))
//	err = fl.Close()
package indexfs

import (
	"fmt"

	"github.com/diskfs/go-indexfs/backend"
	"github.com/diskfs/go-indexfs/backend/file"
	"github.com/diskfs/go-indexfs/filesystem/icfs"
	"github.com/diskfs/go-indexfs/partition"
)

// Create creates an image file of the given size at path and formats a fresh
// filesystem onto it. The file must not exist yet.
func Create(path string, size int64) (*icfs.FileSystem, error) {
	if size < partition.ClusterSize {
		return nil, fmt.Errorf("image size %d is smaller than one %d-byte cluster", size, partition.ClusterSize)
	}
	b, err := file.Create(path, size)
	if err != nil {
		return nil, err
	}
	p, err := partition.New(b, 0, 0)
	if err != nil {
		return nil, err
	}
	return icfs.Format(p)
}

// Open mounts the filesystem on an existing image file or block device.
func Open(path string, readOnly bool) (*icfs.FileSystem, error) {
	b, err := file.Open(path, readOnly)
	if err != nil {
		return nil, err
	}
	return OpenStorage(b)
}

// OpenStorage mounts the filesystem on an already-opened storage, deriving
// the geometry from the storage size.
func OpenStorage(b backend.Storage) (*icfs.FileSystem, error) {
	p, err := partition.New(b, 0, 0)
	if err != nil {
		return nil, err
	}
	return icfs.Mount(p)
}
