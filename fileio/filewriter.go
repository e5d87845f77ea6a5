package fileio

import (
	"io"
	"os"
	"sync"
)

// ChunkSink receives chunks in any order and is finalized exactly once
type ChunkSink interface {
	io.WriterAt
	io.Closer
}

// FileSink writes chunks at their offsets in a local file
type FileSink struct {
	file *os.File
	once sync.Once
	err  error
}

// NewFileSink creates (or truncates) filename and sizes it for the download
func NewFileSink(filename string, size uint64) (*FileSink, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	if err = file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, err
	}
	return &FileSink{file: file}, nil
}

// WriteAt writes chunk data at off
func (f *FileSink) WriteAt(p []byte, off int64) (int, error) {
	return f.file.WriteAt(p, off)
}

// Close flushes and closes the file. Further calls return the first result.
func (f *FileSink) Close() error {
	f.once.Do(func() {
		f.err = f.file.Sync()
		if err := f.file.Close(); f.err == nil {
			f.err = err
		}
	})
	return f.err
}
