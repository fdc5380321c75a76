package store

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore persists entries as JSON files under a directory, one file per
// key. Suited to CLI usage where state should survive between invocations
// without running a database.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// fileEntry carries the original key alongside the value so prefix scans can
// match against it; the filename itself is a hash.
type fileEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	WrittenAt time.Time `json:"written_at"`
}

// path converts a key to a file path. The first two hash characters become a
// subdirectory to keep directory listings small.
func (s *FileStore) path(key string) string {
	h := hashKey(key)
	return filepath.Join(s.dir, h[:2], h[2:]+".json")
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, time.Time, bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	var e fileEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt entry: treat as miss and drop it.
		_ = os.Remove(s.path(key))
		return nil, time.Time{}, false, nil
	}
	return e.Data, e.WrittenAt, true, nil
}

func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	raw, err := json.Marshal(fileEntry{Key: key, Data: data, WrittenAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.walk(ctx, prefix, func(path string, _ fileEntry) error {
		if err := os.Remove(path); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func (s *FileStore) Count(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.walk(ctx, prefix, func(string, fileEntry) error {
		n++
		return nil
	})
	return n, err
}

// walk visits every entry whose key starts with prefix. Unreadable or corrupt
// files are skipped.
func (s *FileStore) walk(ctx context.Context, prefix string, fn func(path string, e fileEntry) error) error {
	return filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var e fileEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil
		}
		if !strings.HasPrefix(e.Key, prefix) {
			return nil
		}
		return fn(path, e)
	})
}

func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
