package fileio

import (
	"fmt"
	"io"
	"os"
)

// ReadChunk reads size bytes at offset from the file at path
func ReadChunk(path string, offset, size uint64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, size)
	read, err := file.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if uint64(read) != size {
		return nil, fmt.Errorf("short read of %s: %d of %d bytes at %d", path, read, size, offset)
	}
	return buf, nil
}
