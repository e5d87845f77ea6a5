package fileio

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// CompressChunk attempts to compress a chunk in LZ4 and either returns original or compressed chunk
func CompressChunk(chunk []byte) ([]byte, bool) {
	buffer := make([]byte, lz4.CompressBlockBound(len(chunk)))
	compressedSize, err := lz4.CompressBlock(chunk, buffer, nil)

	if err != nil || compressedSize == 0 || compressedSize >= len(chunk) {
		// Chunk was not compressible.
		return chunk, false
	}
	return buffer[:compressedSize], true
}

// DecompressChunk inflates an LZ4 block that must yield exactly size bytes
func DecompressChunk(block []byte, size int) ([]byte, error) {
	buffer := make([]byte, size)
	actual, err := lz4.UncompressBlock(block, buffer)
	if err != nil {
		return nil, err
	}
	if actual != size {
		return nil, fmt.Errorf("decompressed %d bytes, expected %d", actual, size)
	}
	return buffer, nil
}
