package icfs

import (
	"encoding/binary"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/diskfs/go-indexfs/partition"
)

// bitVector is the free-space map of the volume: one bit per cluster over the
// whole partition, 1 meaning free and 0 meaning occupied. It occupies the
// leading storageClusters clusters of the partition and is held in memory as
// a bitset while the volume is mounted.
type bitVector struct {
	totalClusters   partition.ClusterNo
	storageClusters partition.ClusterNo
	bits            *bitset.BitSet
}

// bitVectorClusters returns how many clusters are needed to hold one bit for
// each of total clusters.
func bitVectorClusters(total partition.ClusterNo) partition.ClusterNo {
	bytes := (total + 7) / 8
	return (bytes + partition.ClusterSize - 1) / partition.ClusterSize
}

func newBitVector(total partition.ClusterNo) *bitVector {
	return &bitVector{
		totalClusters:   total,
		storageClusters: bitVectorClusters(total),
		bits:            bitset.New(uint(total)),
	}
}

// format marks clusters 0 through root as occupied and everything past root
// as free.
func (bv *bitVector) format(root partition.ClusterNo) {
	bv.bits.ClearAll()
	if root+1 < bv.totalClusters {
		bv.bits.FlipRange(uint(root)+1, uint(bv.totalClusters))
	}
}

// findFree returns the lowest-numbered free cluster past the bit vector
// itself, or 0 if the volume is full. The ascending scan keeps allocation
// deterministic.
func (bv *bitVector) findFree() partition.ClusterNo {
	n, ok := bv.bits.NextSet(uint(bv.storageClusters))
	if !ok || n >= uint(bv.totalClusters) {
		return 0
	}
	return partition.ClusterNo(n)
}

// occupy marks cluster n occupied. Occupying an already-occupied cluster is a
// no-op success; only an out-of-range cluster reports false.
func (bv *bitVector) occupy(n partition.ClusterNo) bool {
	if n >= bv.totalClusters {
		return false
	}
	bv.bits.Clear(uint(n))
	return true
}

// makeFree marks cluster n free, with the same idempotence as occupy.
func (bv *bitVector) makeFree(n partition.ClusterNo) bool {
	if n >= bv.totalClusters {
		return false
	}
	bv.bits.Set(uint(n))
	return true
}

func (bv *bitVector) isFree(n partition.ClusterNo) bool {
	return n < bv.totalClusters && bv.bits.Test(uint(n))
}

func (bv *bitVector) freeCount() partition.ClusterNo {
	return partition.ClusterNo(bv.bits.Count())
}

// image serializes the bit vector into its on-disk form: the bitset's words
// laid out little-endian, which puts bit n at bit n%8 of byte n/8. The image
// is padded with zeros to whole clusters, so padding bits read back as
// occupied and stay out of allocation.
func (bv *bitVector) image() []byte {
	buf := make([]byte, int(bv.storageClusters)*partition.ClusterSize)
	for i, word := range bv.bits.Bytes() {
		binary.LittleEndian.PutUint64(buf[i*8:], word)
	}
	return buf
}

// store writes the bit vector clusters out to the partition.
func (bv *bitVector) store(p *partition.Partition) error {
	img := bv.image()
	for c := partition.ClusterNo(0); c < bv.storageClusters; c++ {
		off := int(c) * partition.ClusterSize
		if err := p.WriteCluster(c, img[off:off+partition.ClusterSize]); err != nil {
			return fmt.Errorf("writing bit vector: %w", err)
		}
	}
	return nil
}

// loadBitVector reads the bit vector back from the leading clusters of the
// partition.
func loadBitVector(p *partition.Partition) (*bitVector, error) {
	bv := newBitVector(p.NumClusters())
	words := make([]uint64, (int(bv.totalClusters)+63)/64)
	buf := make([]byte, partition.ClusterSize)
	wi := 0
	for c := partition.ClusterNo(0); c < bv.storageClusters; c++ {
		if err := p.ReadCluster(c, buf); err != nil {
			return nil, fmt.Errorf("reading bit vector: %w", err)
		}
		for off := 0; off+8 <= partition.ClusterSize && wi < len(words); off += 8 {
			words[wi] = binary.LittleEndian.Uint64(buf[off:])
			wi++
		}
	}
	bv.bits = bitset.FromWithLength(uint(bv.totalClusters), words)
	return bv, nil
}
