//go:build !linux && !darwin

package file

import (
	"errors"
	"os"
)

// deviceSize returns the size in bytes of a block device
func deviceSize(_ *os.File) (int64, error) {
	return 0, errors.New("block devices not supported on this platform")
}
