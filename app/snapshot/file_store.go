package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps one JSON document per key in a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) Path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(key)
	return filepath.Join(f.dir, "snapshot_"+name+".json")
}

func (f *FileStore) Save(_ context.Context, s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := f.Path(s.Key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load returns ErrNotFound for a missing or unreadable file; either way the
// caller starts cold.
func (f *FileStore) Load(_ context.Context, key string) (*Snapshot, error) {
	path := f.Path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read snapshot", "path", path, "error", err)
		}
		return nil, ErrNotFound
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Warn("Corrupt snapshot, ignoring", "path", path, "error", err)
		return nil, ErrNotFound
	}
	if s.Key != key {
		return nil, ErrNotFound
	}
	return &s, nil
}
