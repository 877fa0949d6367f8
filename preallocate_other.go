//go:build !linux && !darwin

package bloomers

import "os"

// preallocate sets the file length. Disk blocks may not be reserved on
// every filesystem.
func preallocate(file *os.File, size int64) error {
	return file.Truncate(size)
}
