// Package icfs implements an indexed-cluster filesystem: a free-space bit
// vector in the leading clusters of a partition, a root directory index right
// behind it, and files laid out behind two levels of index clusters with 512
// little-endian cluster pointers per index.
//
// The directory catalog that maps names to index clusters is deliberately not
// part of this package. A catalog opens a file by handing OpenFile the file's
// first-level index cluster, the location of its directory entry and its
// stored size, and is notified of the final size when a writable handle
// closes.
package icfs

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/diskfs/go-indexfs/filesystem"
	"github.com/diskfs/go-indexfs/partition"
)

// EntryLoc names the location of a directory entry in the catalog: the
// cluster holding it and the slot within that cluster. The engine treats it
// as opaque and only hands it back on close.
type EntryLoc struct {
	Cluster partition.ClusterNo
	Slot    int
}

// Entry is the tuple under which the catalog opens a file.
type Entry struct {
	// Index is the file's first-level index cluster.
	Index partition.ClusterNo
	// Loc is the location of the file's directory entry.
	Loc EntryLoc
	// Size is the stored byte length of the file.
	Size int64
}

// Catalog receives size write-backs when writable file handles close.
type Catalog interface {
	FileClosed(loc EntryLoc, size int64) error
}

// FileSystem is a mounted indexed-cluster volume: the partition, its
// free-space bit vector, and the root directory's first-level index cluster.
// A FileSystem must outlive every File opened from it.
type FileSystem struct {
	partition   *partition.Partition
	bitmap      *bitVector
	bitmapDirty bool
	root        partition.ClusterNo
	serial      uuid.UUID
	readOnly    bool
	catalog     Catalog
	log         *logrus.Entry
}

var _ filesystem.FileSystem = (*FileSystem)(nil)

func newFileSystem(p *partition.Partition, bv *bitVector, root partition.ClusterNo) *FileSystem {
	serial := uuid.New()
	return &FileSystem{
		partition: p,
		bitmap:    bv,
		root:      root,
		serial:    serial,
		readOnly:  p.ReadOnly(),
		log: logrus.WithFields(logrus.Fields{
			"fs":     "icfs",
			"serial": serial.String(),
		}),
	}
}

// Format lays a fresh filesystem onto the partition: the bit vector in the
// leading clusters with everything up to and including the root index marked
// occupied, and the root directory's first-level index zeroed right behind
// it.
func Format(p *partition.Partition) (*FileSystem, error) {
	if p.ReadOnly() {
		return nil, filesystem.ErrReadonlyFilesystem
	}
	bv := newBitVector(p.NumClusters())
	root := bv.storageClusters
	if root >= p.NumClusters() {
		return nil, fmt.Errorf("%w: %d clusters leave no room for the root index", partition.ErrOutOfRange, p.NumClusters())
	}
	fs := newFileSystem(p, bv, root)
	bv.format(root)
	if err := bv.store(p); err != nil {
		return nil, err
	}
	// the root directory starts out with no entries at all
	c, err := fs.getCluster(root)
	if err != nil {
		return nil, err
	}
	c.clear()
	if err := c.Close(); err != nil {
		return nil, err
	}
	fs.log.WithFields(logrus.Fields{
		"clusters": p.NumClusters(),
		"root":     root,
	}).Debug("formatted volume")
	return fs, nil
}

// Mount reads the bit vector of an existing filesystem back from the
// partition, whose geometry must match what the volume was formatted with.
func Mount(p *partition.Partition) (*FileSystem, error) {
	bv, err := loadBitVector(p)
	if err != nil {
		return nil, err
	}
	if bv.storageClusters >= p.NumClusters() {
		return nil, fmt.Errorf("%w: %d clusters leave no room for the root index", partition.ErrOutOfRange, p.NumClusters())
	}
	fs := newFileSystem(p, bv, bv.storageClusters)
	fs.log.WithFields(logrus.Fields{
		"clusters": p.NumClusters(),
		"free":     bv.freeCount(),
	}).Debug("mounted volume")
	return fs, nil
}

// Type returns the type of filesystem
func (fs *FileSystem) Type() filesystem.Type {
	return filesystem.TypeICFS
}

// Serial returns the serial of this mounted instance. The serial is not
// persisted; it exists to correlate log lines from one mount.
func (fs *FileSystem) Serial() string {
	return fs.serial.String()
}

// RootIndex returns the cluster of the root directory's first-level index,
// which sits immediately behind the bit vector.
func (fs *FileSystem) RootIndex() partition.ClusterNo {
	return fs.root
}

// NumClusters returns the total number of clusters on the volume.
func (fs *FileSystem) NumClusters() partition.ClusterNo {
	return fs.partition.NumClusters()
}

// FreeClusters returns the number of clusters currently free.
func (fs *FileSystem) FreeClusters() partition.ClusterNo {
	return fs.bitmap.freeCount()
}

// SetCatalog registers the catalog to notify of final sizes when writable
// handles close. A nil catalog drops the notifications.
func (fs *FileSystem) SetCatalog(c Catalog) {
	fs.catalog = c
}

// Alloc claims the lowest-numbered free cluster and returns it.
func (fs *FileSystem) Alloc() (partition.ClusterNo, error) {
	if fs.readOnly {
		return 0, filesystem.ErrReadonlyFilesystem
	}
	n := fs.bitmap.findFree()
	if n == 0 {
		fs.log.Debug("allocation failed, volume is full")
		return 0, ErrDiskFull
	}
	fs.bitmap.occupy(n)
	fs.bitmapDirty = true
	return n, nil
}

// Free releases cluster n back to the free pool. The bit vector clusters and
// the root index can never be freed; releasing an already-free cluster is a
// no-op.
func (fs *FileSystem) Free(n partition.ClusterNo) error {
	if fs.readOnly {
		return filesystem.ErrReadonlyFilesystem
	}
	if n <= fs.root || n >= fs.partition.NumClusters() {
		return fmt.Errorf("%w: cannot free cluster %d", partition.ErrOutOfRange, n)
	}
	fs.bitmap.makeFree(n)
	fs.bitmapDirty = true
	return nil
}

// NewFileIndex allocates and zeroes a first-level index cluster for a file
// the catalog is about to create.
func (fs *FileSystem) NewFileIndex() (partition.ClusterNo, error) {
	return fs.allocZeroed()
}

// Flush writes the bit vector back to the partition if it changed since the
// last flush.
func (fs *FileSystem) Flush() error {
	if !fs.bitmapDirty {
		return nil
	}
	if err := fs.bitmap.store(fs.partition); err != nil {
		return err
	}
	fs.bitmapDirty = false
	return nil
}

// Close flushes the filesystem and releases the underlying storage. The
// FileSystem must not be used afterwards.
func (fs *FileSystem) Close() error {
	err := fs.Flush()
	if cerr := fs.partition.Close(); err == nil {
		err = cerr
	}
	fs.log.Debug("closed volume")
	return err
}

// allocZeroed allocates a cluster, zeroes it and flushes it within a single
// scoped view, so the caller can open its own view without ever aliasing a
// live one. A cluster that cannot be zeroed is handed back to the free pool.
func (fs *FileSystem) allocZeroed() (partition.ClusterNo, error) {
	n, err := fs.Alloc()
	if err != nil {
		return 0, err
	}
	c, err := fs.getCluster(n)
	if err != nil {
		_ = fs.Free(n)
		return 0, err
	}
	c.clear()
	if err := c.Close(); err != nil {
		_ = fs.Free(n)
		return 0, err
	}
	return n, nil
}

func (fs *FileSystem) getCluster(n partition.ClusterNo) (*cluster, error) {
	return newCluster(fs.partition, n)
}

func (fs *FileSystem) getIndex(n partition.ClusterNo) (*index, error) {
	return newIndex(fs.partition, n)
}
