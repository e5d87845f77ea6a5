package fileio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"smfsp/config"
)

// FileMeta describes one file a server hosts
type FileMeta struct {
	Name string
	Path string
	Size uint64
}

// FileMap maps announced names to files on disk. It is owned by the server loop.
type FileMap struct {
	files map[string]*FileMeta
	names []string
}

// ParseFileMap builds the map from "name:path" or "path" arguments and checks every file exists
func ParseFileMap(args []string) (*FileMap, error) {
	m := &FileMap{files: make(map[string]*FileMeta)}

	for _, arg := range args {
		name, path, found := strings.Cut(arg, ":")
		if !found {
			path = arg
			name = filepath.Base(filepath.Clean(arg))
		}
		if len(name) == 0 || len(name) > config.MaxNameLength || !utf8.ValidString(name) {
			return nil, fmt.Errorf("%w: invalid file name %q", config.ErrConfiguration, name)
		}
		if _, dup := m.files[name]; dup {
			return nil, fmt.Errorf("%w: duplicated key %q", config.ErrConfiguration, name)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
		m.files[name] = &FileMeta{Name: name, Path: abs}
		m.names = append(m.names, name)
	}

	if len(m.names) == 0 {
		return nil, fmt.Errorf("%w: no file registered, at least one is necessary", config.ErrConfiguration)
	}
	if len(m.names) > 255 {
		return nil, fmt.Errorf("%w: at most 255 files can be announced", config.ErrConfiguration)
	}

	for _, name := range m.names {
		if _, err := m.Refresh(name); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
	}
	return m, nil
}

// Names returns file names in registration order
func (m *FileMap) Names() []string {
	return m.names
}

// Lookup returns the last known metadata of a file
func (m *FileMap) Lookup(name string) (*FileMeta, bool) {
	meta, ok := m.files[name]
	return meta, ok
}

// Refresh re-reads the on-disk size of a file and records it
func (m *FileMap) Refresh(name string) (*FileMeta, error) {
	meta, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("unknown file %q", name)
	}
	info, err := os.Stat(meta.Path)
	if err != nil {
		return nil, fmt.Errorf("file '%s' not found: %w", meta.Path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory", meta.Path)
	}
	meta.Size = uint64(info.Size())
	return meta, nil
}
