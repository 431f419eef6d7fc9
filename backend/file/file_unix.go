//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build aix darwin dragonfly freebsd linux netbsd openbsd solaris

package file

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// this constant should be part of "golang.org/x/sys/unix" on every platform, but isn't on all of them yet
const blkgetsize64 = 0x80081272

// DeviceSize returns the size in bytes of the backing block device, via an
// ioctl (BLKGETSIZE64 on Linux). It only works when the storage wraps a real
// device special file, not a plain image file; callers should fall back to
// Stat().Size() otherwise.
func DeviceSize(f *os.File) (int64, error) {
	size, err := unix.IoctlGetUint64(int(f.Fd()), blkgetsize64)
	if err != nil {
		return 0, fmt.Errorf("unable to get device size: %w", err)
	}
	return int64(size), nil
}
