package icfs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/diskfs/go-indexfs/filesystem"
	"github.com/diskfs/go-indexfs/partition"
)

func TestFormat(t *testing.T) {
	t.Run("geometry", func(t *testing.T) {
		fs, img := newTestFS(t, 16)
		if got := fs.RootIndex(); got != 1 {
			t.Errorf("RootIndex() = %d, expected 1", got)
		}
		if got := fs.FreeClusters(); got != 14 {
			t.Errorf("FreeClusters() = %d, expected 14", got)
		}
		// bitmap byte 0 on disk: clusters 0 and 1 occupied, rest free
		if img[0] != 0xfc || img[1] != 0xff {
			t.Errorf("bitmap bytes = %#x %#x, expected 0xfc 0xff", img[0], img[1])
		}
	})
	t.Run("root index is zeroed", func(t *testing.T) {
		p, img := newTestPartition(t, 16)
		for i := partition.ClusterSize; i < 2*partition.ClusterSize; i++ {
			img[i] = 0xee // stale junk where the root index will live
		}
		if _, err := Format(p); err != nil {
			t.Fatalf("unexpected error formatting: %v", err)
		}
		if !bytes.Equal(img[partition.ClusterSize:2*partition.ClusterSize], make([]byte, partition.ClusterSize)) {
			t.Error("root index cluster was not zeroed by format")
		}
	})
	t.Run("too small for a root index", func(t *testing.T) {
		p, _ := newTestPartition(t, 1)
		if _, err := Format(p); !errors.Is(err, partition.ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange, got %v", err)
		}
	})
	t.Run("read-only storage", func(t *testing.T) {
		b, _ := newTestStorage(16)
		b.Writer = nil
		p, err := partition.New(b, 0, 16)
		if err != nil {
			t.Fatalf("unexpected error creating partition: %v", err)
		}
		if _, err := Format(p); !errors.Is(err, filesystem.ErrReadonlyFilesystem) {
			t.Errorf("expected ErrReadonlyFilesystem, got %v", err)
		}
	})
}

func TestMount(t *testing.T) {
	p, _ := newTestPartition(t, 16)
	fs, err := Format(p)
	if err != nil {
		t.Fatalf("unexpected error formatting: %v", err)
	}
	if _, err := fs.Alloc(); err != nil {
		t.Fatalf("unexpected error allocating: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("unexpected error flushing: %v", err)
	}
	mounted, err := Mount(p)
	if err != nil {
		t.Fatalf("unexpected error mounting: %v", err)
	}
	if got := mounted.FreeClusters(); got != 13 {
		t.Errorf("FreeClusters() after remount = %d, expected 13", got)
	}
	if got := mounted.RootIndex(); got != 1 {
		t.Errorf("RootIndex() after remount = %d, expected 1", got)
	}
}

func TestAllocFree(t *testing.T) {
	fs, _ := newTestFS(t, 16)
	t.Run("ascending allocation", func(t *testing.T) {
		for expected := partition.ClusterNo(2); expected < 16; expected++ {
			n, err := fs.Alloc()
			if err != nil {
				t.Fatalf("unexpected error allocating: %v", err)
			}
			if n != expected {
				t.Fatalf("Alloc() = %d, expected %d", n, expected)
			}
		}
	})
	t.Run("full volume", func(t *testing.T) {
		if _, err := fs.Alloc(); !errors.Is(err, ErrDiskFull) {
			t.Errorf("expected ErrDiskFull, got %v", err)
		}
	})
	t.Run("freed clusters are reallocated lowest first", func(t *testing.T) {
		if err := fs.Free(9); err != nil {
			t.Fatalf("unexpected error freeing: %v", err)
		}
		if err := fs.Free(4); err != nil {
			t.Fatalf("unexpected error freeing: %v", err)
		}
		n, err := fs.Alloc()
		if err != nil {
			t.Fatalf("unexpected error allocating: %v", err)
		}
		if n != 4 {
			t.Errorf("Alloc() = %d, expected 4", n)
		}
	})
	t.Run("protected clusters cannot be freed", func(t *testing.T) {
		for _, n := range []partition.ClusterNo{0, 1, 16, 100} {
			if err := fs.Free(n); !errors.Is(err, partition.ErrOutOfRange) {
				t.Errorf("Free(%d): expected ErrOutOfRange, got %v", n, err)
			}
		}
	})
}

func TestAllocZeroed(t *testing.T) {
	fs, img := newTestFS(t, 16)
	// plant junk where the next allocation will land
	start := 2 * partition.ClusterSize
	for i := start; i < start+partition.ClusterSize; i++ {
		img[i] = 0xa5
	}
	n, err := fs.allocZeroed()
	if err != nil {
		t.Fatalf("unexpected error allocating: %v", err)
	}
	if n != 2 {
		t.Fatalf("allocZeroed() = %d, expected 2", n)
	}
	if !bytes.Equal(img[start:start+partition.ClusterSize], make([]byte, partition.ClusterSize)) {
		t.Error("allocated cluster was not zeroed on disk")
	}
}

func TestClusterView(t *testing.T) {
	p, img := newTestPartition(t, 16)
	t.Run("flushes when touched", func(t *testing.T) {
		c, err := newCluster(p, 3)
		if err != nil {
			t.Fatalf("unexpected error acquiring cluster: %v", err)
		}
		copy(c.bytes(), []byte("payload"))
		if err := c.Close(); err != nil {
			t.Fatalf("unexpected error closing cluster: %v", err)
		}
		if got := string(img[3*partition.ClusterSize : 3*partition.ClusterSize+7]); got != "payload" {
			t.Errorf("cluster content on disk = %q, expected %q", got, "payload")
		}
	})
	t.Run("clear zeroes the image", func(t *testing.T) {
		c, err := newCluster(p, 3)
		if err != nil {
			t.Fatalf("unexpected error acquiring cluster: %v", err)
		}
		c.clear()
		if err := c.Close(); err != nil {
			t.Fatalf("unexpected error closing cluster: %v", err)
		}
		if !bytes.Equal(img[3*partition.ClusterSize:4*partition.ClusterSize], make([]byte, partition.ClusterSize)) {
			t.Error("cluster was not zeroed on disk")
		}
	})
}

func TestIndexView(t *testing.T) {
	p, img := newTestPartition(t, 16)
	x, err := newIndex(p, 4)
	if err != nil {
		t.Fatalf("unexpected error acquiring index: %v", err)
	}
	if got := x.size(); got != entriesPerIndex {
		t.Errorf("size() = %d, expected %d", got, entriesPerIndex)
	}
	if !x.empty() {
		t.Error("fresh index should be empty")
	}
	x.setEntry(0, 7)
	x.setEntry(511, 12)
	if x.empty() {
		t.Error("index with entries should not be empty")
	}
	if err := x.Close(); err != nil {
		t.Fatalf("unexpected error closing index: %v", err)
	}
	// entries are little-endian on disk
	base := 4 * partition.ClusterSize
	if img[base] != 7 || img[base+1] != 0 {
		t.Errorf("entry 0 bytes = %#x %#x, expected 0x7 0x0", img[base], img[base+1])
	}
	if img[base+511*4] != 12 {
		t.Errorf("entry 511 first byte = %#x, expected 0xc", img[base+511*4])
	}
	x2, err := newIndex(p, 4)
	if err != nil {
		t.Fatalf("unexpected error reacquiring index: %v", err)
	}
	if got := x2.entry(0); got != 7 {
		t.Errorf("entry(0) = %d, expected 7", got)
	}
	if got := x2.entry(511); got != 12 {
		t.Errorf("entry(511) = %d, expected 12", got)
	}
	if err := x2.Close(); err != nil {
		t.Fatalf("unexpected error closing index: %v", err)
	}
}

func TestReadOnlyVolume(t *testing.T) {
	b, _ := newTestStorage(16)
	p, err := partition.New(b, 0, 16)
	if err != nil {
		t.Fatalf("unexpected error creating partition: %v", err)
	}
	if _, err := Format(p); err != nil {
		t.Fatalf("unexpected error formatting: %v", err)
	}
	b.Writer = nil
	readonly, err := partition.New(b, 0, 16)
	if err != nil {
		t.Fatalf("unexpected error creating read-only partition: %v", err)
	}
	fs, err := Mount(readonly)
	if err != nil {
		t.Fatalf("unexpected error mounting read-only: %v", err)
	}
	if _, err := fs.Alloc(); !errors.Is(err, filesystem.ErrReadonlyFilesystem) {
		t.Errorf("Alloc: expected ErrReadonlyFilesystem, got %v", err)
	}
	if err := fs.Free(5); !errors.Is(err, filesystem.ErrReadonlyFilesystem) {
		t.Errorf("Free: expected ErrReadonlyFilesystem, got %v", err)
	}
	if _, err := fs.OpenFile(Entry{Index: fs.RootIndex()}, ModeWrite); !errors.Is(err, filesystem.ErrReadonlyFilesystem) {
		t.Errorf("OpenFile: expected ErrReadonlyFilesystem, got %v", err)
	}
	if _, err := fs.OpenFile(Entry{Index: fs.RootIndex()}, ModeRead); err != nil {
		t.Errorf("unexpected error opening read-only handle: %v", err)
	}
}
