package bloomers

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Save writes the serialized filter to path.
//
// The file is pre-allocated to its exact final size and memory-mapped, and
// the header and bit payload are encoded in place. On any failure the
// partially written file is removed, so path either holds a complete
// filter or does not exist.
func (f *Filter) Save(path string) error {
	size := f.encodedSize()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create filter file: %w", err)
	}

	if err := preallocate(file, int64(size)); err != nil {
		primaryErr := fmt.Errorf("allocate filter file: %w", err)
		return errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	mm, err := mmap.MapRegion(file, size, mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("mmap filter file: %w", err)
		return errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	prefaultRegion(mm)
	f.encodeTo(mm)

	if err := mm.Flush(); err != nil {
		primaryErr := fmt.Errorf("mmap flush failed: %w", err)
		return errors.Join(primaryErr, mm.Unmap(), file.Close(), os.Remove(path))
	}
	if err := mm.Unmap(); err != nil {
		primaryErr := fmt.Errorf("mmap unmap failed: %w", err)
		return errors.Join(primaryErr, file.Close(), os.Remove(path))
	}
	if err := file.Close(); err != nil {
		return errors.Join(fmt.Errorf("close filter file: %w", err), os.Remove(path))
	}
	return nil
}
