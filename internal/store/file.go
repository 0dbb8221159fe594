package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/log"
)

var _ Store = (*File)(nil)

// fileEntry is the on-disk layout of one cached response.
type fileEntry struct {
	Key      string          `json:"key"`
	Data     json.RawMessage `json:"data"`
	CachedAt time.Time       `json:"cachedAt"`
	Version  int             `json:"version"`
}

// File stores one JSON file per key under a directory. Entries older than
// the TTL, or written by a different layout version, read as missing.
type File struct {
	dir string
	ttl time.Duration

	mu     sync.RWMutex
	closed bool
	n      *notifier
}

// NewFile creates a file store rooted at dir. An empty dir uses the user
// cache directory; a zero ttl uses constants.DefaultCacheTTL.
func NewFile(dir string, ttl time.Duration) (*File, error) {
	if dir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(cacheDir, "gqlc", "responses")
	}
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &File{dir: dir, ttl: ttl, n: newNotifier()}, nil
}

// Dir returns the directory holding the entries.
func (f *File) Dir() string {
	return f.dir
}

// fileName maps a key to a file name. Keys are "kind:hex" but any string
// is accepted; path separators and colons are replaced.
func fileName(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(key) + ".json"
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, fileName(key))
}

func (f *File) read(key string) (json.RawMessage, bool, error) {
	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry fileEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.Debug("discarding unreadable cache entry", "key", key, "error", err)
		return nil, false, nil
	}
	if entry.Version != constants.StoreVersion {
		log.Debug("cache version mismatch", "cached", entry.Version, "current", constants.StoreVersion, "key", key)
		return nil, false, nil
	}
	if entry.Key != key {
		return nil, false, nil
	}
	if time.Since(entry.CachedAt) > f.ttl {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// write replaces the file atomically through a temp file and rename.
func (f *File) write(key string, data json.RawMessage) error {
	raw, err := json.Marshal(fileEntry{
		Key:      key,
		Data:     data,
		CachedAt: time.Now(),
		Version:  constants.StoreVersion,
	})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

func (f *File) remove(key string) error {
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) Load(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, false, ErrClosed
	}
	return f.read(key)
}

func (f *File) Write(ctx context.Context, key string, data json.RawMessage) error {
	return f.WithinReadWriteTransaction(ctx, func(tx Transaction) error {
		return tx.Write(key, data)
	})
}

// WithinReadWriteTransaction stages writes in memory and applies them only
// after fn succeeds. Transactions are serialised within the process; other
// processes sharing the directory may interleave at file granularity.
func (f *File) WithinReadWriteTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	tx := &fileTx{f: f, staged: newStaged()}
	if err := fn(tx); err != nil {
		f.mu.Unlock()
		return err
	}
	changes := tx.staged.list()
	for _, c := range changes {
		var err error
		if c.data == nil {
			err = f.remove(c.key)
		} else {
			err = f.write(c.key, c.data)
		}
		if err != nil {
			f.mu.Unlock()
			return fmt.Errorf("failed to commit cache entry %s: %w", c.key, err)
		}
	}
	f.n.enqueue(changes)
	f.mu.Unlock()

	f.n.flush()
	return nil
}

// Clear removes all cached entries
func (f *File) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) Watch(key string, fn func(json.RawMessage)) func() {
	return f.n.watch(key, fn)
}

// Stats counts entry files and how many of them are still within the TTL.
func (f *File) Stats(ctx context.Context) (*Stats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Backend: BackendFile, Location: f.dir}
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats.Total++

		raw, err := os.ReadFile(filepath.Join(f.dir, entry.Name()))
		if err != nil {
			continue
		}
		var fe fileEntry
		if err := json.Unmarshal(raw, &fe); err != nil {
			continue
		}
		if fe.Version == constants.StoreVersion && now.Sub(fe.CachedAt) <= f.ttl {
			stats.Valid++
		}
	}
	return stats, nil
}

func (f *File) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.n.reset()
	return nil
}

type fileTx struct {
	f      *File
	staged *staged
}

func (t *fileTx) Read(key string) (json.RawMessage, bool, error) {
	if c, ok := t.staged.get(key); ok {
		return clone(c.data), c.data != nil, nil
	}
	return t.f.read(key)
}

func (t *fileTx) Write(key string, data json.RawMessage) error {
	if data == nil {
		data = json.RawMessage("null")
	}
	t.staged.put(key, clone(data))
	return nil
}

func (t *fileTx) Delete(key string) error {
	t.staged.put(key, nil)
	return nil
}
