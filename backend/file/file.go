// Package file backs a volume with a plain image file or a raw block
// device node.
package file

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/diskfs/go-indexfs/backend"
)

type fileBackend struct {
	file     *os.File
	size     int64
	readOnly bool
}

// backend.Storage interface guard
var _ backend.Storage = (*fileBackend)(nil)

// Create makes a fresh image file of exactly size bytes at pathName. The
// file must not exist yet. Block devices cannot be created, only opened.
func Create(pathName string, size int64) (backend.Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass image file name")
	}
	if size <= 0 {
		return nil, errors.New("must pass valid image size to create")
	}
	f, err := os.OpenFile(pathName, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not create image %s: %w", pathName, err)
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not expand image %s to size %d: %w", pathName, size, err)
	}
	return &fileBackend{file: f, size: size}, nil
}

// Open opens an existing image file or block device node. Regular files
// report their size through Stat; for device nodes the size comes from the
// kernel. Unless readOnly, devices are opened exclusively.
func Open(pathName string, readOnly bool) (backend.Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass image or device name")
	}
	info, err := os.Stat(pathName)
	if err != nil {
		return nil, fmt.Errorf("could not stat %s: %w", pathName, err)
	}
	openMode := os.O_RDONLY
	if !readOnly {
		openMode = os.O_RDWR | os.O_EXCL
	}
	f, err := os.OpenFile(pathName, openMode, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open %s with mode %v: %w", pathName, openMode, err)
	}
	size := info.Size()
	if info.Mode()&os.ModeDevice != 0 {
		if size, err = deviceSize(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("could not get size of device %s: %w", pathName, err)
		}
	}
	return &fileBackend{file: f, size: size, readOnly: readOnly}, nil
}

func (b *fileBackend) ReadAt(p []byte, off int64) (int, error) {
	return b.file.ReadAt(p, off)
}

func (b *fileBackend) Size() int64 {
	return b.size
}

// Writable hands out the underlying file for writes unless the backing was
// opened read-only.
func (b *fileBackend) Writable() (io.WriterAt, error) {
	if b.readOnly {
		return nil, backend.ErrWriteProtected
	}
	return b.file, nil
}

func (b *fileBackend) Close() error {
	return b.file.Close()
}
