package icfs

import "github.com/diskfs/go-indexfs/partition"

// cluster is a scoped in-memory view of one on-disk cluster: construction
// reads the cluster from the partition, Close writes it back if it was
// touched. At most one live view may exist for a given cluster number.
type cluster struct {
	p     *partition.Partition
	num   partition.ClusterNo
	data  []byte
	dirty bool
}

func newCluster(p *partition.Partition, n partition.ClusterNo) (*cluster, error) {
	c := &cluster{p: p, num: n, data: make([]byte, partition.ClusterSize)}
	if err := p.ReadCluster(n, c.data); err != nil {
		return nil, err
	}
	return c, nil
}

// bytes returns the mutable cluster image and marks the view dirty.
func (c *cluster) bytes() []byte {
	c.dirty = true
	return c.data
}

// view returns the cluster image for reading only.
func (c *cluster) view() []byte {
	return c.data
}

// clear zeroes the cluster image.
func (c *cluster) clear() {
	clear(c.data)
	c.dirty = true
}

// save writes the image back to its cluster.
func (c *cluster) save() error {
	if err := c.p.WriteCluster(c.num, c.data); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Close flushes the view back to the partition. An untouched view closes
// without device I/O.
func (c *cluster) Close() error {
	if !c.dirty {
		return nil
	}
	return c.save()
}
