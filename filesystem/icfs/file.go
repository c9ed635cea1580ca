package icfs

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/diskfs/go-indexfs/filesystem"
	"github.com/diskfs/go-indexfs/partition"
)

// Mode selects how a file handle may be used.
type Mode byte

const (
	// ModeRead allows reads only.
	ModeRead Mode = 'r'
	// ModeWrite allows reads and writes, starting at the beginning of the file.
	ModeWrite Mode = 'w'
	// ModeAppend allows reads and writes, starting at the end of the file.
	ModeAppend Mode = 'a'
)

// MaxFileSize is the geometric capacity of a single file: two index levels
// of entriesPerIndex pointers each, addressing ClusterSize-byte data
// clusters.
const MaxFileSize = entriesPerIndex * entriesPerIndex * partition.ClusterSize

// File is an open handle on one file of the volume: a cursor, the file's
// first-level index held open for the life of the handle, and the catalog
// entry location to report back to on close.
//
// Data is reached through two indirections: entry i of the first-level index
// names a second-level index cluster, entry j of that index names the data
// cluster holding byte (i*entriesPerIndex+j)*ClusterSize onward. Extension
// is dense: writing past the allocated region fills index slots in order,
// never leaving gaps.
type File struct {
	fs     *FileSystem
	l1     *index
	loc    EntryLoc
	mode   Mode
	cursor int64
	size   int64
}

var _ filesystem.File = (*File)(nil)

// OpenFile opens the file described by the catalog entry e. The returned
// handle must be closed to flush the index and, for writable modes, deliver
// the final size back to the catalog.
func (fs *FileSystem) OpenFile(e Entry, mode Mode) (*File, error) {
	switch mode {
	case ModeRead, ModeWrite, ModeAppend:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if mode != ModeRead && fs.readOnly {
		return nil, filesystem.ErrReadonlyFilesystem
	}
	if e.Index == 0 || e.Index >= fs.partition.NumClusters() {
		return nil, fmt.Errorf("%w: index cluster %d", partition.ErrOutOfRange, e.Index)
	}
	if e.Size < 0 || e.Size > MaxFileSize {
		return nil, fmt.Errorf("%w: stored size %d", ErrOutOfRange, e.Size)
	}
	l1, err := fs.getIndex(e.Index)
	if err != nil {
		return nil, err
	}
	f := &File{
		fs:   fs,
		l1:   l1,
		loc:  e.Loc,
		mode: mode,
		size: e.Size,
	}
	if mode == ModeAppend {
		f.cursor = f.size
	}
	return f, nil
}

// locate maps the cursor onto the index geometry: the first-level slot, the
// second-level slot, and the byte offset within the data cluster.
func locate(cursor int64) (i, j, offset int) {
	target := cursor / partition.ClusterSize
	return int(target / entriesPerIndex), int(target % entriesPerIndex), int(cursor % partition.ClusterSize)
}

// Read reads up to len(b) bytes from the cursor, never past the end of the
// file. Following the io.Reader contract it returns io.EOF once the cursor
// sits at the end, possibly alongside the final bytes.
func (f *File) Read(b []byte) (int, error) {
	if f.fs == nil {
		return 0, os.ErrClosed
	}
	if f.size == 0 || f.cursor >= f.size {
		return 0, io.EOF
	}
	maxRead := f.size - f.cursor
	if int64(len(b)) < maxRead {
		maxRead = int64(len(b))
	}
	totalRead := 0
	i, j, offset := locate(f.cursor)
	for ; i < entriesPerIndex && int64(totalRead) < maxRead; i++ {
		l2cluster := f.l1.entry(i)
		if l2cluster == 0 {
			// a gap in a densely extended file marks the logical end
			break
		}
		l2, err := f.fs.getIndex(l2cluster)
		if err != nil {
			return totalRead, err
		}
		n, rerr := f.readRun(l2, j, b[totalRead:maxRead], offset)
		totalRead += n
		if cerr := l2.Close(); rerr == nil {
			rerr = cerr
		}
		if rerr != nil {
			return totalRead, rerr
		}
		j = 0
		offset = 0
	}
	if f.cursor >= f.size {
		return totalRead, io.EOF
	}
	return totalRead, nil
}

// readRun copies data clusters referenced by l2 into b, starting at slot j
// with the first copy beginning at offset within its cluster.
func (f *File) readRun(l2 *index, j int, b []byte, offset int) (int, error) {
	read := 0
	for ; j < entriesPerIndex && read < len(b); j++ {
		dataCluster := l2.entry(j)
		if dataCluster == 0 {
			return read, nil
		}
		c, err := f.fs.getCluster(dataCluster)
		if err != nil {
			return read, err
		}
		toRead := len(b) - read
		if m := partition.ClusterSize - offset; toRead > m {
			toRead = m
		}
		copy(b[read:read+toRead], c.view()[offset:])
		if err := c.Close(); err != nil {
			return read, err
		}
		read += toRead
		f.cursor += int64(toRead)
		offset = 0
	}
	return read, nil
}

// Write writes len(p) bytes at the cursor, allocating second-level index and
// data clusters on demand. The file grows only when the cursor is at the end
// at the moment a chunk is copied; overwrites in the middle leave the size
// untouched. When the volume fills mid-write the bytes already copied stay
// persisted and counted, and the error is ErrDiskFull; the caller may free
// space and retry the rest.
func (f *File) Write(p []byte) (int, error) {
	if f.fs == nil {
		return 0, os.ErrClosed
	}
	if f.mode == ModeRead {
		return 0, filesystem.ErrReadonlyFile
	}
	if len(p) == 0 {
		return 0, nil
	}
	if f.cursor+int64(len(p)) > MaxFileSize {
		return 0, ErrFileTooLarge
	}
	written := 0
	i, j, offset := locate(f.cursor)
	for ; i < entriesPerIndex && written < len(p); i++ {
		if f.l1.entry(i) == 0 {
			// extend the file with a fresh second-level index
			n, err := f.fs.allocZeroed()
			if err != nil {
				return written, err
			}
			f.l1.setEntry(i, n)
		}
		l2, err := f.fs.getIndex(f.l1.entry(i))
		if err != nil {
			return written, err
		}
		n, werr := f.writeRun(l2, j, p[written:], offset)
		written += n
		if cerr := l2.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return written, werr
		}
		j = 0
		offset = 0
	}
	return written, nil
}

// writeRun writes into the data clusters referenced by l2 starting at slot
// j, allocating data clusters for empty slots as it goes.
func (f *File) writeRun(l2 *index, j int, p []byte, offset int) (int, error) {
	written := 0
	for ; j < entriesPerIndex && written < len(p); j++ {
		if l2.entry(j) == 0 {
			n, err := f.fs.allocZeroed()
			if err != nil {
				return written, err
			}
			l2.setEntry(j, n)
		}
		c, err := f.fs.getCluster(l2.entry(j))
		if err != nil {
			return written, err
		}
		toWrite := len(p) - written
		if m := partition.ClusterSize - offset; toWrite > m {
			toWrite = m
		}
		copy(c.bytes()[offset:], p[written:written+toWrite])
		if err := c.Close(); err != nil {
			return written, err
		}
		if f.cursor == f.size {
			// appending, so the file grows
			f.size += int64(toWrite)
		}
		f.cursor += int64(toWrite)
		written += toWrite
		offset = 0
	}
	return written, nil
}

// Seek sets the cursor. Unlike the usual io.Seeker, positions past the
// current end of the file are rejected with ErrOutOfRange; seeking to
// exactly the end is valid and makes EOF report 2.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.fs == nil {
		return 0, os.ErrClosed
	}
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = f.cursor + offset
	case io.SeekEnd:
		newOffset = f.size + offset
	default:
		return f.cursor, fmt.Errorf("unknown whence value %d", whence)
	}
	if newOffset < 0 || newOffset > f.size {
		return f.cursor, fmt.Errorf("%w: seek to %d with size %d", ErrOutOfRange, newOffset, f.size)
	}
	f.cursor = newOffset
	return f.cursor, nil
}

// Pos returns the cursor, or 0 on a closed handle.
func (f *File) Pos() int64 {
	if f.fs == nil {
		return 0
	}
	return f.cursor
}

// Size returns the byte length of the file, or 0 on a closed handle.
func (f *File) Size() int64 {
	if f.fs == nil {
		return 0
	}
	return f.size
}

// EOF reports the end-of-file state: 1 on a closed handle or an empty file,
// 2 when the cursor sits exactly at the end, 0 otherwise.
func (f *File) EOF() int {
	if f.fs == nil || f.size == 0 {
		return 1
	}
	if f.cursor == f.size {
		return 2
	}
	return 0
}

// Truncate drops everything strictly after the cursor. A data cluster that
// still holds bytes before the cursor is kept; every data cluster from
// ceil(cursor/ClusterSize) to the end is freed (so at a cluster-aligned
// cursor the cluster starting at the cursor goes too), a
// second-level index left without entries is freed with it, and the
// first-level index cluster is always retained so the file keeps its
// identity even at size 0.
func (f *File) Truncate() error {
	if f.fs == nil {
		return os.ErrClosed
	}
	if f.mode == ModeRead {
		return filesystem.ErrReadonlyFile
	}
	if f.size == 0 || f.cursor == f.size {
		return fmt.Errorf("%w: nothing past the cursor", ErrOutOfRange)
	}
	first := (f.cursor + partition.ClusterSize - 1) / partition.ClusterSize
	last := (f.size - 1) / partition.ClusterSize
	// the tail is logically gone even if scavenging fails midway; a shorter
	// size cannot double-free what was already released
	f.size = f.cursor
	if first > last {
		return nil
	}
	cur := first
	i := int(first / entriesPerIndex)
	j := int(first % entriesPerIndex)
	for ; i < entriesPerIndex && cur <= last; i++ {
		l2cluster := f.l1.entry(i)
		if l2cluster == 0 {
			return fmt.Errorf("missing second-level index while truncating cluster %d", cur)
		}
		l2, err := f.fs.getIndex(l2cluster)
		if err != nil {
			return err
		}
		serr := f.scavengeRun(l2, j, &cur, last)
		if serr == nil && l2.empty() {
			// nothing references the second level anymore
			if ferr := f.fs.Free(l2cluster); ferr == nil {
				f.l1.setEntry(i, 0)
			} else {
				serr = ferr
			}
		}
		if cerr := l2.Close(); serr == nil {
			serr = cerr
		}
		if serr != nil {
			return serr
		}
		j = 0
	}
	return nil
}

// scavengeRun frees the data clusters referenced by l2 from slot j onward
// until cur passes last, zeroing each entry as its cluster is released.
func (f *File) scavengeRun(l2 *index, j int, cur *int64, last int64) error {
	for ; j < entriesPerIndex && *cur <= last; j++ {
		dataCluster := l2.entry(j)
		if dataCluster == 0 {
			return fmt.Errorf("missing data cluster while truncating cluster %d", *cur)
		}
		if err := f.fs.Free(dataCluster); err != nil {
			return err
		}
		l2.setEntry(j, 0)
		(*cur)++
	}
	return nil
}

// Close flushes the first-level index and the free-space map, reports the
// final size to the catalog for writable modes, and marks the handle
// closed. Closing an already-closed handle is a no-op.
func (f *File) Close() error {
	if f.fs == nil {
		return nil
	}
	fs := f.fs
	f.fs = nil
	err := f.l1.Close()
	if ferr := fs.Flush(); err == nil {
		err = ferr
	}
	if f.mode != ModeRead && fs.catalog != nil {
		if cerr := fs.catalog.FileClosed(f.loc, f.size); err == nil {
			err = cerr
		}
	}
	fs.log.WithFields(logrus.Fields{
		"index": f.l1.cluster(),
		"size":  f.size,
	}).Debug("closed file")
	return err
}
