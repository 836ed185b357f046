package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/domain"
)

// Cache mirrors persisted conversations in process. It is never the system
// of record.
type Cache interface {
	Get(userID uuid.UUID) ([]domain.Turn, bool)
	Set(userID uuid.UUID, turns []domain.Turn)
	Invalidate(userID uuid.UUID)
}

// MemoryCache keeps one independently locked entry per user, so readers and
// writers of different users never contend on the same lock beyond the
// brief entry lookup.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	mu       sync.RWMutex
	turns    []domain.Turn
	cachedAt time.Time
	valid    bool
}

// NewMemoryCache creates a cache whose entries expire after ttl. A zero ttl
// keeps entries until invalidated.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[uuid.UUID]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) entry(userID uuid.UUID, create bool) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok && create {
		e = &cacheEntry{}
		c.entries[userID] = e
	}
	return e
}

func (c *MemoryCache) Get(userID uuid.UUID) ([]domain.Turn, bool) {
	e := c.entry(userID, false)
	if e == nil {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.valid || (c.ttl > 0 && c.now().Sub(e.cachedAt) > c.ttl) {
		return nil, false
	}
	return domain.CloneTurns(e.turns), true
}

func (c *MemoryCache) Set(userID uuid.UUID, turns []domain.Turn) {
	e := c.entry(userID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = domain.CloneTurns(turns)
	if e.turns == nil {
		e.turns = []domain.Turn{}
	}
	e.cachedAt = c.now()
	e.valid = true
}

func (c *MemoryCache) Invalidate(userID uuid.UUID) {
	c.mu.Lock()
	e, ok := c.entries[userID]
	delete(c.entries, userID)
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.valid = false
	e.turns = nil
	e.mu.Unlock()
}

