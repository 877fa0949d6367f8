//go:build linux

package bloomers

import "golang.org/x/sys/unix"

// MADV_POPULATE_WRITE was added in Linux 5.14. Older kernels return
// EINVAL, which is ignored.
const madvPopulateWrite = 23

// prefaultRegion asks the kernel to fault in a freshly mapped output
// region before the payload is written. Best-effort.
func prefaultRegion(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, madvPopulateWrite)
}

// adviseSequentialMapping hints that a mapped filter file will be read
// front to back once. Best-effort.
func adviseSequentialMapping(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}

// adviseSequentialFile hints that fd will be read sequentially over
// [offset, offset+length). A length of 0 means to the end of the file.
// Applied before each ingestion pass. Best-effort.
func adviseSequentialFile(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}
