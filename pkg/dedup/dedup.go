// Package dedup implements a bounded, TTL-based deduplication cache:
// is_duplicate/add/metrics/dispose over a hash derived by a pluggable
// Strategy, with size-bounded eviction and a background cleanup sweep.
package dedup

import (
	"container/heap"
	"strings"
	"sync"
	"time"

	"github.com/brokercore/brokercore/pkg/errors"
)

// Config configures a Cache.
type Config struct {
	// MaxSize bounds the number of live entries. On breach, the entry
	// with the earliest expiry (ties broken by earliest insertion) is
	// evicted.
	MaxSize int `env:"DEDUP_MAX_SIZE" env-default:"10000"`

	// Window is the default TTL used by Add when no explicit ttl is
	// given, and validated against the 24h ceiling.
	Window time.Duration `env:"DEDUP_WINDOW" env-default:"5m"`

	// CleanupInterval is how often the background sweep runs.
	CleanupInterval time.Duration `env:"DEDUP_CLEANUP_INTERVAL" env-default:"1m"`
}

func (c Config) validate() error {
	if c.Window > 24*time.Hour {
		return errors.ConfigInvalid("dedup window must not exceed 24h", nil)
	}
	if c.MaxSize <= 0 {
		return errors.ConfigInvalid("dedup max_size must be positive", nil)
	}
	return nil
}

type entry struct {
	hash           string
	insertedAt     time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
	index          int
}

// entryHeap is a min-heap ordered by (expiresAt, insertedAt), giving
// earliest-expiry-first eviction with earliest-insertion as a tiebreak.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if !h[i].expiresAt.Equal(h[j].expiresAt) {
		return h[i].expiresAt.Before(h[j].expiresAt)
	}
	return h[i].insertedAt.Before(h[j].insertedAt)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Metrics is a point-in-time snapshot of cache counters.
type Metrics struct {
	Size               int
	Hits               int64
	Misses             int64
	DuplicatesDetected int64
	Evictions          int64
	LastCleanupAt      time.Time
}

// Cache is a bounded, TTL-based set of seen hashes, safe for concurrent use.
type Cache struct {
	cfg Config

	mu       sync.Mutex
	entries  map[string]*entry
	byExpiry entryHeap

	cleanupMu sync.Mutex
	stopCh    chan struct{}
	stopOnce  sync.Once

	disposed bool

	hits, misses, duplicates, evictions int64
	lastCleanupAt                       time.Time
}

// New builds a Cache from cfg and starts its background cleanup loop.
func New(cfg Config) (*Cache, error) {
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		cfg:     cfg,
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}
	go c.cleanupLoop()
	return c, nil
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.stopCh:
			return
		}
	}
}

// runCleanup removes expired entries. Only one scan may run at a time: a
// concurrent trigger observes the held try-lock and returns without work.
func (c *Cache) runCleanup() {
	if !c.cleanupMu.TryLock() {
		return
	}
	defer c.cleanupMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for len(c.byExpiry) > 0 && !c.byExpiry[0].expiresAt.After(now) {
		e := heap.Pop(&c.byExpiry).(*entry)
		delete(c.entries, e.hash)
	}
	c.lastCleanupAt = now
}

// IsDuplicate returns true iff a non-expired entry with hash exists. An
// expired entry found in place is evicted opportunistically.
func (c *Cache) IsDuplicate(hash string) (bool, error) {
	if strings.TrimSpace(hash) == "" {
		return false, errors.ArgumentInvalid("dedup hash must not be empty", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return false, errors.Disposed("dedup cache is disposed")
	}

	e, ok := c.entries[hash]
	if !ok {
		c.misses++
		return false, nil
	}

	now := time.Now()
	if !e.expiresAt.After(now) {
		heap.Remove(&c.byExpiry, e.index)
		delete(c.entries, hash)
		c.misses++
		return false, nil
	}

	e.lastAccessedAt = now
	c.hits++
	c.duplicates++
	return true, nil
}

// Add inserts or replaces the entry for hash with the given ttl,
// evicting the earliest-expiring entry if MaxSize would be exceeded.
func (c *Cache) Add(hash string, ttl time.Duration) error {
	if strings.TrimSpace(hash) == "" {
		return errors.ArgumentInvalid("dedup hash must not be empty", nil)
	}
	if ttl <= 0 {
		ttl = c.cfg.Window
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return errors.Disposed("dedup cache is disposed")
	}

	now := time.Now()
	if existing, ok := c.entries[hash]; ok {
		heap.Remove(&c.byExpiry, existing.index)
		delete(c.entries, hash)
	}

	e := &entry{
		hash:           hash,
		insertedAt:     now,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
	}
	c.entries[hash] = e
	heap.Push(&c.byExpiry, e)

	for len(c.entries) > c.cfg.MaxSize {
		evicted := heap.Pop(&c.byExpiry).(*entry)
		delete(c.entries, evicted.hash)
		c.evictions++
	}

	return nil
}

// Metrics reports current cache counters.
func (c *Cache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Metrics{
		Size:               len(c.entries),
		Hits:               c.hits,
		Misses:             c.misses,
		DuplicatesDetected: c.duplicates,
		Evictions:          c.evictions,
		LastCleanupAt:      c.lastCleanupAt,
	}
}

// Dispose stops the background cleanup loop. Subsequent calls to
// IsDuplicate/Add fail with CodeDisposed. Safe to call more than once.
func (c *Cache) Dispose() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()
	return nil
}
