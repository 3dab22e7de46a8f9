package embedding

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteCacheSchema = `
CREATE TABLE IF NOT EXISTS embedding_cache (
	key        TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	text       TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embedding_cache_created ON embedding_cache(created_at);
`

// SQLiteCache keeps entries in a single SQLite table.
type SQLiteCache struct {
	db   *sql.DB
	ttl  time.Duration
	opts cacheOptions
}

var _ Cache = (*SQLiteCache)(nil)

// OpenSQLiteCache opens or creates the cache database at path.
func OpenSQLiteCache(ctx context.Context, path string, ttl time.Duration, opts ...CacheOption) (*SQLiteCache, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteCacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteCache{db: db, ttl: ttl, opts: buildCacheOptions(opts)}, nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) Get(ctx context.Context, text, model string) ([]float32, bool) {
	key := CacheKey(text, model)

	var (
		storedModel, storedText string
		blob                    []byte
		createdAt               int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT model, text, embedding, created_at FROM embedding_cache WHERE key = ?`, key,
	).Scan(&storedModel, &storedText, &blob, &createdAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.opts.logger.Warn("embedding cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	if storedModel != model || storedText != text {
		return nil, false
	}
	vec, ok := decodeVector(blob)
	if !ok {
		c.opts.logger.Warn("embedding cache entry corrupt, removing", "key", key)
		c.delete(ctx, key)
		return nil, false
	}
	if expired(time.Unix(0, createdAt), c.opts.now(), c.ttl) {
		c.delete(ctx, key)
		return nil, false
	}
	return vec, true
}

func (c *SQLiteCache) Put(ctx context.Context, text, model string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	key := CacheKey(text, model)
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embedding_cache (key, model, text, embedding, created_at) VALUES (?, ?, ?, ?, ?)`,
		key, model, text, encodeVector(vec), c.opts.now().UnixNano(),
	)
	if err != nil {
		c.opts.logger.Warn("embedding cache write failed", "key", key, "error", err)
	}
}

func (c *SQLiteCache) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM embedding_cache WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	c.opts.logger.Info("embedding cache purged", "removed", n, "cutoff", cutoff)
	return int(n), nil
}

func (c *SQLiteCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embedding_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache: %w", err)
	}
	return n, nil
}

func (c *SQLiteCache) delete(ctx context.Context, key string) {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM embedding_cache WHERE key = ?`, key); err != nil {
		c.opts.logger.Warn("embedding cache remove failed", "key", key, "error", err)
	}
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, true
}
