package fileio

import (
	"crypto/sha256"
	"io"
	"os"
)

// GetFileChecksumSHA256 returns SHA256 checksum of given file
func GetFileChecksumSHA256(file string) ([]byte, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	hash := sha256.New()
	if _, err := io.CopyBuffer(hash, handle, make([]byte, 64*1024)); err != nil {
		return nil, err
	}

	return hash.Sum(nil), nil
}
