package utils

import (
	"os"

	"golang.org/x/sys/unix"
)

// IOCtl はデバイスファイルに対してioctlを発行する
func IOCtl(deviceFile *os.File, cmd, ptr uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, deviceFile.Fd(), cmd, ptr)
	if errno != 0 {
		return errno
	}
	return nil
}
