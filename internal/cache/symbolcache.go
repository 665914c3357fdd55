// Package cache provides a bounded in-memory cache for symbol information
// with snapshot persistence, so lookups survive process restarts.
package cache

import (
	"container/list"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// SymbolInfo is the cached description of a traded instrument.
type SymbolInfo struct {
	Symbol    string `json:"symbol" msgpack:"symbol"`
	Name      string `json:"name" msgpack:"name"`
	ISIN      string `json:"isin" msgpack:"isin"`
	Currency  string `json:"currency" msgpack:"currency"`
	Exchange  string `json:"exchange" msgpack:"exchange"`
	FetchedAt int64  `json:"fetchedAt" msgpack:"fetched_at"`
}

// SymbolCache is a fixed-capacity cache keyed by symbol. When full, the
// least recently used entry is evicted. Safe for concurrent use.
type SymbolCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	key  string
	info SymbolInfo
}

// NewSymbolCache creates a cache holding at most capacity entries.
// Capacity must be positive; values below 1 are raised to 1.
func NewSymbolCache(capacity int) *SymbolCache {
	if capacity < 1 {
		capacity = 1
	}
	return &SymbolCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached info for a symbol and marks it recently used.
func (c *SymbolCache) Get(symbol string) (SymbolInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[symbol]
	if !ok {
		return SymbolInfo{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).info, true
}

// Put stores info for a symbol, evicting the least recently used entry
// when the cache is at capacity.
func (c *SymbolCache) Put(info SymbolInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[info.Symbol]; ok {
		el.Value.(*cacheEntry).info = info
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	c.entries[info.Symbol] = c.order.PushFront(&cacheEntry{key: info.Symbol, info: info})
}

// Len returns the number of cached entries.
func (c *SymbolCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// snapshot returns all entries ordered from least to most recently used,
// so replaying them through Put restores the recency order.
func (c *SymbolCache) snapshot() []SymbolInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]SymbolInfo, 0, c.order.Len())
	for el := c.order.Back(); el != nil; el = el.Prev() {
		infos = append(infos, el.Value.(*cacheEntry).info)
	}
	return infos
}

// SnapshotStore persists cache snapshots to the cache database as
// msgpack blobs.
type SnapshotStore struct {
	db  *sql.DB // cache.db - cache_snapshots table
	log zerolog.Logger
}

// NewSnapshotStore creates a snapshot store backed by cache.db.
func NewSnapshotStore(db *sql.DB, log zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{
		db:  db,
		log: log.With().Str("repo", "cache_snapshots").Logger(),
	}
}

// Save writes the cache contents under the given snapshot name.
func (s *SnapshotStore) Save(name string, c *SymbolCache) error {
	data, err := msgpack.Marshal(c.snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", name, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO cache_snapshots (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, name, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}

	s.log.Debug().Str("snapshot", name).Int("entries", c.Len()).Msg("Cache snapshot saved")
	return nil
}

// Load replays a stored snapshot into the cache. A missing snapshot is
// not an error; the cache is simply left empty.
func (s *SnapshotStore) Load(name string, c *SymbolCache) error {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM cache_snapshots WHERE name = ?", name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", name, err)
	}

	var infos []SymbolInfo
	if err := msgpack.Unmarshal(data, &infos); err != nil {
		return fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	for _, info := range infos {
		c.Put(info)
	}

	s.log.Debug().Str("snapshot", name).Int("entries", len(infos)).Msg("Cache snapshot loaded")
	return nil
}
