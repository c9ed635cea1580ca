package testhelper

import (
	"io"

	"github.com/diskfs/go-indexfs/backend"
)

type reader func(b []byte, offset int64) (int, error)
type writer func(b []byte, offset int64) (int, error)

// FileImpl implements github.com/diskfs/go-indexfs/backend.Storage
// used for testing to enable stubbing out storage
type FileImpl struct {
	Reader reader
	Writer writer
}

// backend.Storage interface guard
var _ backend.Storage = (*FileImpl)(nil)

// ReadAt read at a particular offset
func (f *FileImpl) ReadAt(b []byte, offset int64) (int, error) {
	return f.Reader(b, offset)
}

// WriteAt write at a particular offset
func (f *FileImpl) WriteAt(b []byte, offset int64) (int, error) {
	return f.Writer(b, offset)
}

// Size the stub has no inherent size; tests pass explicit geometry instead
func (f *FileImpl) Size() int64 {
	return 0
}

// Writable writes go to the Writer func; a FileImpl without one is read-only
func (f *FileImpl) Writable() (io.WriterAt, error) {
	if f.Writer == nil {
		return nil, backend.ErrWriteProtected
	}
	return f, nil
}

func (f *FileImpl) Close() error {
	return nil
}
