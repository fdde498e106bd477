package compress

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Cache stores compressed bytes keyed by input content and compressor.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key, compressor string, data []byte) error
	Close() error
}

// Key returns the cache key for data processed by the compressor with id.
func Key(data []byte, id string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))
}

// SQLiteCache implements Cache using SQLite.
type SQLiteCache struct {
	db *sql.DB
	mu sync.Mutex
}

// CacheFile is the database file name inside the cache directory.
const CacheFile = "images.db"

// OpenCache opens (creating when needed) the cache database inside dir.
func OpenCache(dir string) (*SQLiteCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return NewSQLiteCache(filepath.Join(dir, CacheFile))
}

// NewSQLiteCache opens the database at dbPath. Use ":memory:" for a
// throwaway cache.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	c := &SQLiteCache{db: db}
	if err := c.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS images (
		key TEXT PRIMARY KEY,
		compressor TEXT NOT NULL,
		data BLOB NOT NULL,
		size INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_images_compressor ON images(compressor);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached bytes for key.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, "SELECT data FROM images WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query image cache: %w", err)
	}
	return data, true, nil
}

// Put stores data under key, replacing any previous entry.
func (c *SQLiteCache) Put(ctx context.Context, key, compressor string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO images (key, compressor, data, size, created_at) VALUES (?, ?, ?, ?, ?)",
		key, compressor, data, len(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert image cache entry: %w", err)
	}
	return nil
}

// Count returns the number of cached entries.
func (c *SQLiteCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, fmt.Errorf("count image cache: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
