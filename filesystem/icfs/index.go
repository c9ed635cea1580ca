package icfs

import (
	"encoding/binary"

	"github.com/diskfs/go-indexfs/partition"
)

// entriesPerIndex is the number of cluster pointers held by one index
// cluster: 32-bit entries, little-endian on disk.
const entriesPerIndex = partition.ClusterSize / 4

// index is a typed view of a cluster as a fixed-length array of cluster
// pointers. Like cluster, the view is scoped: construction reads, Close
// flushes if any entry was set. Entry value 0 means unallocated.
type index struct {
	c *cluster
}

func newIndex(p *partition.Partition, n partition.ClusterNo) (*index, error) {
	c, err := newCluster(p, n)
	if err != nil {
		return nil, err
	}
	return &index{c: c}, nil
}

func (x *index) size() int {
	return entriesPerIndex
}

func (x *index) cluster() partition.ClusterNo {
	return x.c.num
}

func (x *index) entry(i int) partition.ClusterNo {
	return partition.ClusterNo(binary.LittleEndian.Uint32(x.c.view()[i*4:]))
}

func (x *index) setEntry(i int, n partition.ClusterNo) {
	binary.LittleEndian.PutUint32(x.c.bytes()[i*4:], uint32(n))
}

// empty reports whether no entry references a cluster.
func (x *index) empty() bool {
	for i := 0; i < entriesPerIndex; i++ {
		if x.entry(i) != 0 {
			return false
		}
	}
	return true
}

func (x *index) Close() error {
	return x.c.Close()
}
