package database

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileStore is a Store that keeps one file per key. It is the fallback when
// sqlite cannot be opened, and backs tests via an in-memory afero filesystem.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(filesystem afero.Fs, dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store directory not set")
	}
	if err := filesystem.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{fs: filesystem, dir: dir}, nil
}

func (s *FileStore) Get(key string) (string, bool, error) {
	data, err := afero.ReadFile(s.fs, s.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return string(data), true, nil
}

func (s *FileStore) Set(key, value string) error {
	path := s.pathFor(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, []byte(value), 0o644); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// pathFor maps a key to a safe filename under the store directory.
func (s *FileStore) pathFor(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, safe+".kv")
}
