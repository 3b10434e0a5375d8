package cart

import (
	"hash/fnv"
	"sync"

	"github.com/northwear/storefront/pkg/models"
)

// Store holds the in-memory carts, keyed by session id. It is injected
// rather than shared as a package-level map so tests can run against an
// isolated instance. Carts do not survive a process restart.
type Store interface {
	// Get returns the cart for a session, empty if none exists.
	Get(sessionID string) []models.CartLine
	// Put replaces the cart for a session.
	Put(sessionID string, lines []models.CartLine)
	// Delete removes the session's cart entirely.
	Delete(sessionID string)
}

const storeShardCount = 16

type storeShard struct {
	mu    sync.RWMutex
	carts map[string][]models.CartLine
}

type memoryStore struct {
	shards [storeShardCount]*storeShard
}

// NewMemoryStore creates a sharded in-memory cart store. Sessions hash to
// shards, so carts of different sessions never contend on one lock.
func NewMemoryStore() Store {
	s := &memoryStore{}
	for i := range s.shards {
		s.shards[i] = &storeShard{carts: make(map[string][]models.CartLine)}
	}
	return s
}

func (s *memoryStore) shardFor(key string) *storeShard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return s.shards[hasher.Sum32()%storeShardCount]
}

func (s *memoryStore) Get(sessionID string) []models.CartLine {
	sh := s.shardFor(sessionID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	lines := sh.carts[sessionID]
	// Copy so callers never alias the stored slice.
	out := make([]models.CartLine, len(lines))
	copy(out, lines)
	return out
}

func (s *memoryStore) Put(sessionID string, lines []models.CartLine) {
	sh := s.shardFor(sessionID)
	stored := make([]models.CartLine, len(lines))
	copy(stored, lines)
	sh.mu.Lock()
	sh.carts[sessionID] = stored
	sh.mu.Unlock()
}

func (s *memoryStore) Delete(sessionID string) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	delete(sh.carts, sessionID)
	sh.mu.Unlock()
}
