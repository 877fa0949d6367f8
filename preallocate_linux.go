//go:build linux

package bloomers

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for file and sets its length, so that
// writes through a shared mapping cannot hit SIGBUS on a full disk.
func preallocate(file *os.File, size int64) error {
	fd := int(file.Fd())
	if err := unix.Fallocate(fd, 0, 0, size); err != nil {
		// Some filesystems (NFS, tmpfs on old kernels) lack fallocate.
		return unix.Ftruncate(fd, size)
	}
	return nil
}
