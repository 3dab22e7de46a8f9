package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const cacheFileExt = ".json"

// FileCache stores one JSON file per key under a directory.
type FileCache struct {
	dir  string
	ttl  time.Duration
	opts cacheOptions
}

var _ Cache = (*FileCache)(nil)

// NewFileCache creates dir if needed. ttl <= 0 disables expiry.
func NewFileCache(dir string, ttl time.Duration, opts ...CacheOption) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir, ttl: ttl, opts: buildCacheOptions(opts)}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+cacheFileExt)
}

// Get returns the cached vector. Expired and unreadable entries are
// deleted and reported as absent.
func (c *FileCache) Get(_ context.Context, text, model string) ([]float32, bool) {
	p := c.path(CacheKey(text, model))

	data, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.opts.logger.Warn("embedding cache read failed", "path", p, "error", err)
		}
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || len(entry.Embedding) == 0 {
		c.opts.logger.Warn("embedding cache entry corrupt, removing", "path", p, "error", err)
		c.remove(p)
		return nil, false
	}
	// A hash collision or a hand-edited file; don't trust it.
	if entry.Model != model || entry.Text != text {
		return nil, false
	}
	if expired(entry.CreatedAt, c.opts.now(), c.ttl) {
		c.remove(p)
		return nil, false
	}
	return entry.Embedding, true
}

// Put writes the entry via a temp file and rename so readers never see a
// partial file.
func (c *FileCache) Put(_ context.Context, text, model string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	key := CacheKey(text, model)
	data, err := json.Marshal(cacheEntry{
		Text:      text,
		Model:     model,
		Embedding: vec,
		CreatedAt: c.opts.now().UTC(),
	})
	if err != nil {
		c.opts.logger.Warn("embedding cache encode failed", "key", key, "error", err)
		return
	}

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		c.opts.logger.Warn("embedding cache write failed", "key", key, "error", err)
		return
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		c.opts.logger.Warn("embedding cache write failed", "key", key, "error", err)
		c.remove(tmpName)
		return
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		c.opts.logger.Warn("embedding cache rename failed", "key", key, "error", err)
		c.remove(tmpName)
	}
}

// Purge removes entries created before cutoff. Corrupt entries are removed
// and counted as well.
func (c *FileCache) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	names, err := c.entryNames()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		p := filepath.Join(c.dir, name)
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var entry cacheEntry
		if err := json.Unmarshal(data, &entry); err == nil && !entry.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.opts.logger.Warn("embedding cache purge failed", "path", p, "error", err)
			continue
		}
		removed++
	}

	c.opts.logger.Info("embedding cache purged", "dir", c.dir, "removed", removed, "cutoff", cutoff)
	return removed, nil
}

// Len counts entry files.
func (c *FileCache) Len(context.Context) (int, error) {
	names, err := c.entryNames()
	return len(names), err
}

func (c *FileCache) entryNames() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), cacheFileExt) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func (c *FileCache) remove(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.opts.logger.Warn("embedding cache remove failed", "path", p, "error", err)
	}
}
