// Package partition exposes a backend.Storage as a fixed-geometry array of
// clusters. All filesystem I/O goes through ReadCluster and WriteCluster;
// nothing above this package addresses the storage by byte offset.
package partition

import (
	"errors"
	"fmt"
	"io"

	"github.com/diskfs/go-indexfs/backend"
)

// ClusterSize is the size in bytes of a single cluster. Every read and write
// against the partition moves exactly one cluster.
const ClusterSize = 2048

// ClusterNo names a cluster on the partition. The value 0 is reserved as the
// null cluster pointer and never refers to allocatable space.
type ClusterNo uint32

var (
	// ErrStorageIO is returned when the underlying device read or write fails.
	ErrStorageIO = errors.New("storage I/O error")
	// ErrOutOfRange is returned for a cluster number beyond the partition.
	ErrOutOfRange = errors.New("cluster number out of range")
)

// Partition is a cluster-granular view over a backend.Storage. Cluster 0
// sits start bytes into the storage, so a partition can occupy a window of
// a larger image the way a disk partition occupies a window of a disk.
type Partition struct {
	storage     backend.Storage
	writer      io.WriterAt
	start       int64
	numClusters ClusterNo
}

// New creates a Partition over the given storage, beginning start bytes in.
// If numClusters is 0 the geometry is derived from the storage size past
// start, rounding down to whole clusters.
func New(b backend.Storage, start int64, numClusters ClusterNo) (*Partition, error) {
	if b == nil {
		return nil, errors.New("must pass backing storage")
	}
	if start < 0 {
		return nil, fmt.Errorf("negative start offset %d", start)
	}
	if numClusters == 0 {
		size := b.Size()
		if size <= start {
			return nil, errors.New("backing storage reports no usable size; pass an explicit cluster count")
		}
		numClusters = ClusterNo((size - start) / ClusterSize)
	}
	if numClusters == 0 {
		return nil, fmt.Errorf("backing storage smaller than one %d-byte cluster", ClusterSize)
	}
	p := &Partition{
		storage:     b,
		start:       start,
		numClusters: numClusters,
	}
	// a read-only backing store simply yields no writer
	if w, err := b.Writable(); err == nil {
		p.writer = w
	}
	return p, nil
}

// NumClusters returns the number of clusters on the partition.
func (p *Partition) NumClusters() ClusterNo {
	return p.numClusters
}

// ReadOnly reports whether the partition was opened without write access.
func (p *Partition) ReadOnly() bool {
	return p.writer == nil
}

// ReadCluster reads cluster n into buf. buf must be exactly ClusterSize bytes.
func (p *Partition) ReadCluster(n ClusterNo, buf []byte) error {
	if n >= p.numClusters {
		return fmt.Errorf("%w: cluster %d of %d", ErrOutOfRange, n, p.numClusters)
	}
	if len(buf) != ClusterSize {
		return fmt.Errorf("cluster buffer must be %d bytes, not %d", ClusterSize, len(buf))
	}
	if _, err := p.storage.ReadAt(buf, p.start+int64(n)*ClusterSize); err != nil {
		return fmt.Errorf("%w: reading cluster %d: %v", ErrStorageIO, n, err)
	}
	return nil
}

// WriteCluster writes buf to cluster n. buf must be exactly ClusterSize bytes.
func (p *Partition) WriteCluster(n ClusterNo, buf []byte) error {
	if n >= p.numClusters {
		return fmt.Errorf("%w: cluster %d of %d", ErrOutOfRange, n, p.numClusters)
	}
	if len(buf) != ClusterSize {
		return fmt.Errorf("cluster buffer must be %d bytes, not %d", ClusterSize, len(buf))
	}
	if p.writer == nil {
		return backend.ErrWriteProtected
	}
	if _, err := p.writer.WriteAt(buf, p.start+int64(n)*ClusterSize); err != nil {
		return fmt.Errorf("%w: writing cluster %d: %v", ErrStorageIO, n, err)
	}
	return nil
}

// Close closes the underlying storage.
func (p *Partition) Close() error {
	return p.storage.Close()
}
