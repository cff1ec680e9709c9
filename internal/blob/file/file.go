// Package file persists blobs as one JSON file per key inside a data
// directory. Writes go through a temp file and a rename so a crash mid-write
// never leaves a truncated blob behind.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"serverwatch/internal/blob"
)

var _ blob.Store = (*Store)(nil)

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read blob %q: %w", key, err)
	}
	return data, true, nil
}

func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	target := s.path(key)
	tmp := fmt.Sprintf("%s.%d.tmp", target, time.Now().UnixNano())
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("write temp blob %q: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace blob %q: %w", key, err)
	}
	return nil
}
