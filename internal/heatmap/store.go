package heatmap

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is the keyed artifact cache behind the pipeline. Production uses
// the heatmap cache directory; tests swap in an in-memory fake.
type Store interface {
	Exists(name string) bool
	Get(name string) ([]byte, error)
	Put(name string, data []byte) (string, error)
	Path(name string) string
}

type fsStore struct {
	dir string
}

func NewFSStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create heatmap dir: %w", err)
	}
	return fsStore{dir: dir}, nil
}

func (s fsStore) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

func (s fsStore) Get(name string) ([]byte, error) {
	return os.ReadFile(s.Path(name))
}

func (s fsStore) Put(name string, data []byte) (string, error) {
	path := s.Path(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write heatmap: %w", err)
	}
	return path, nil
}

func (s fsStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}
