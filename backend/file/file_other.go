//go:build !(aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris)
// +build !aix,!darwin,!dragonfly,!freebsd,!linux,!netbsd,!openbsd,!solaris

package file

import (
	"errors"
	"os"
)

// DeviceSize is unsupported outside the unix-family build; block-device
// backends on these platforms must rely on Stat().Size() instead.
func DeviceSize(f *os.File) (int64, error) {
	return 0, errors.New("device size ioctl not supported on this platform")
}
