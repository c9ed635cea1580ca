package icfs

import (
	"testing"

	"github.com/diskfs/go-indexfs/partition"
	"github.com/diskfs/go-indexfs/testhelper"
)

// newTestStorage returns an in-memory backing store of n clusters along with
// the raw image behind it, so tests can inspect exactly what hit the disk.
func newTestStorage(n int) (*testhelper.FileImpl, []byte) {
	img := make([]byte, n*partition.ClusterSize)
	f := &testhelper.FileImpl{
		Reader: func(b []byte, offset int64) (int, error) {
			return copy(b, img[offset:]), nil
		},
		Writer: func(b []byte, offset int64) (int, error) {
			return copy(img[offset:], b), nil
		},
	}
	return f, img
}

// newTestPartition builds a partition over an in-memory store.
func newTestPartition(t *testing.T, n int) (*partition.Partition, []byte) {
	t.Helper()
	b, img := newTestStorage(n)
	p, err := partition.New(b, 0, partition.ClusterNo(n))
	if err != nil {
		t.Fatalf("unexpected error creating partition: %v", err)
	}
	return p, img
}

// newTestFS formats a fresh filesystem over an in-memory store.
func newTestFS(t *testing.T, n int) (*FileSystem, []byte) {
	t.Helper()
	p, img := newTestPartition(t, n)
	fs, err := Format(p)
	if err != nil {
		t.Fatalf("unexpected error formatting: %v", err)
	}
	return fs, img
}
