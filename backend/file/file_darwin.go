package file

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// these constants should be part of "golang.org/x/sys/unix", but aren't, yet
const (
	DKIOCGETBLOCKSIZE  = 0x40046418
	DKIOCGETBLOCKCOUNT = 0x40086419
)

// deviceSize returns the size in bytes of a block device
func deviceSize(f *os.File) (int64, error) {
	fd := f.Fd()

	blockSize, err := unix.IoctlGetInt(int(fd), DKIOCGETBLOCKSIZE)
	if err != nil {
		return 0, fmt.Errorf("unable to get device block size: %v", err)
	}
	blockCount, err := unix.IoctlGetInt(int(fd), DKIOCGETBLOCKCOUNT)
	if err != nil {
		return 0, fmt.Errorf("unable to get device block count: %v", err)
	}
	return int64(blockSize) * int64(blockCount), nil
}
