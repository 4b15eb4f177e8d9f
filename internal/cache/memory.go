package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/roamstack/place-resolver/internal/domain"
)

// Default TTL policy: high-confidence results live longer because popular
// travel destinations rarely relocate.
const (
	DefaultTTL           = 24 * time.Hour
	DefaultHighConfTTL   = 7 * 24 * time.Hour
	DefaultHighConfFloor = 0.8
	DefaultMaxEntries    = 10_000
)

// MemoryConfig tunes a Memory cache. Zero values fall back to the defaults.
type MemoryConfig struct {
	TTL           time.Duration // entries below the confidence floor
	HighConfTTL   time.Duration // entries at or above the confidence floor
	HighConfFloor float64
	MaxEntries    int
}

func (c *MemoryConfig) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.HighConfTTL <= 0 {
		c.HighConfTTL = DefaultHighConfTTL
	}
	if c.HighConfFloor <= 0 {
		c.HighConfFloor = DefaultHighConfFloor
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
}

// Memory is a bounded, time-expiring in-process cache.
//
// Expiry is lazy: an expired entry is detected and deleted on the next Get.
// The size bound is enforced opportunistically on writes by evicting
// least-recently-inserted entries; there is no background sweep.
type Memory struct {
	cfg   MemoryConfig
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]memoryEntry
	order   []string // insertion order, oldest first
	hits    int64
}

type memoryEntry struct {
	result     domain.GeocodeResult
	insertedAt time.Time
	ttl        time.Duration
}

// NewMemory creates an in-memory cache. The clock is injectable so tests
// can advance a fake clock past the TTL; pass clockwork.NewRealClock() in
// production.
func NewMemory(cfg MemoryConfig, clock clockwork.Clock) *Memory {
	cfg.applyDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		cfg:     cfg,
		clock:   clock,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, key string) (*domain.GeocodeResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.clock.Since(e.insertedAt) > e.ttl {
		m.deleteLocked(key)
		return nil, false
	}
	m.hits++
	out := e.result.Clone()
	return &out, true
}

func (m *Memory) Set(_ context.Context, key string, result domain.GeocodeResult) {
	ttl := m.cfg.TTL
	if result.Confidence >= m.cfg.HighConfFloor {
		ttl = m.cfg.HighConfTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		// Refresh in place; insertion order keeps the original slot so a
		// rewritten hot entry does not dodge eviction forever.
		m.entries[key] = memoryEntry{result: result.Clone(), insertedAt: m.clock.Now(), ttl: ttl}
		return
	}

	m.entries[key] = memoryEntry{result: result.Clone(), insertedAt: m.clock.Now(), ttl: ttl}
	m.order = append(m.order, key)

	for len(m.entries) > m.cfg.MaxEntries {
		m.evictOldestLocked()
	}
}

func (m *Memory) Stats(_ context.Context) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Size: len(m.entries), TotalHits: m.hits}
}

// deleteLocked removes key from the map and from its insertion-order slot.
// Keeping order and entries in lockstep matters: a stale slot left behind
// would both grow order without bound under expiry churn and mark a
// re-inserted key as oldest, evicting the fresh entry first.
func (m *Memory) deleteLocked(key string) {
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *Memory) evictOldestLocked() {
	if len(m.order) == 0 {
		return
	}
	oldest := m.order[0]
	m.order = m.order[1:]
	delete(m.entries, oldest)
}
