package file

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// deviceSize returns the size in bytes of a block device
func deviceSize(f *os.File) (int64, error) {
	fd := f.Fd()

	size, err := unix.IoctlGetInt(int(fd), unix.BLKGETSIZE64)
	if err != nil {
		return 0, fmt.Errorf("unable to get device size: %v", err)
	}
	return int64(size), nil
}
