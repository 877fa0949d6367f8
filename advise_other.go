//go:build !linux

package bloomers

// prefaultRegion is a no-op outside Linux.
func prefaultRegion(data []byte) {}

// adviseSequentialMapping is a no-op outside Linux.
func adviseSequentialMapping(data []byte) {}

// adviseSequentialFile is a no-op outside Linux; FADV_SEQUENTIAL is
// Linux-specific.
func adviseSequentialFile(fd int, offset, length int64) {}
