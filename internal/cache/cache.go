// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/law-makers/dommap/pkg/models"
	"github.com/rs/zerolog/log"
)

// Cache stores parsed stylesheet trees keyed by content.
//
// Parsing is a pure function of the stylesheet text, so a tree may be shared
// by every result that captured the same sheet. Trees are read-only once
// stored.
type Cache interface {
	// Get retrieves a parsed tree by key.
	Get(key string) (*models.Rule, bool)

	// Set stores a tree with the specified TTL. size is the byte cost charged
	// against the cache budget (usually the length of the source text).
	Set(key string, rules *models.Rule, size int64, ttl time.Duration) error

	// Delete removes an entry. Missing keys are not an error.
	Delete(key string) error

	// Clear removes all entries.
	Clear() error

	// Close stops background goroutines.
	Close()
}

type cacheEntry struct {
	Rules     *models.Rule
	Size      int64
	ExpiresAt time.Time
	Key       string
}

// MemoryCache is an in-memory LRU with per-entry expiry.
type MemoryCache struct {
	store   map[string]*list.Element
	lruList *list.List
	mu      sync.RWMutex
	maxSize int64
	size    int64
	ttl     time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	hits    uint64
	misses  uint64
}

// NewMemoryCache creates a cache bounded to maxSizeBytes. defaultTTL is used
// when Set is called with a non-positive TTL.
func NewMemoryCache(maxSizeBytes int64, defaultTTL time.Duration) *MemoryCache {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 64 * 1024 * 1024
	}
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	cache := &MemoryCache{
		store:   make(map[string]*list.Element),
		lruList: list.New(),
		maxSize: maxSizeBytes,
		ttl:     defaultTTL,
		ctx:     ctx,
		cancel:  cancel,
	}

	go cache.cleanupExpired()

	return cache
}

// Get moves a live entry to the front of the LRU list.
func (mc *MemoryCache) Get(key string) (*models.Rule, bool) {
	mc.mu.Lock() // write lock: LRU order changes
	element, exists := mc.store[key]
	if !exists {
		mc.misses++
		mc.mu.Unlock()
		return nil, false
	}

	entry := element.Value.(*cacheEntry)

	if time.Now().After(entry.ExpiresAt) {
		mc.removeElement(element)
		mc.misses++
		mc.mu.Unlock()
		return nil, false
	}

	mc.lruList.MoveToFront(element)
	mc.hits++
	mc.mu.Unlock()

	log.Debug().Str("key", key).Msg("Stylesheet cache hit")
	return entry.Rules, true
}

// Set inserts or replaces an entry, evicting least recently used entries
// until it fits.
func (mc *MemoryCache) Set(key string, rules *models.Rule, size int64, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = mc.ttl
	}
	if size < 0 {
		size = 0
	}
	size += 1024 // rough overhead of the tree itself

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[key]; exists {
		old := element.Value.(*cacheEntry)
		mc.size -= old.Size
		element.Value = &cacheEntry{Rules: rules, Size: size, ExpiresAt: time.Now().Add(ttl), Key: key}
		mc.lruList.MoveToFront(element)
		mc.size += size

		log.Debug().
			Str("key", key).
			Dur("ttl", ttl).
			Int64("size_bytes", size).
			Msg("Updated stylesheet cache entry")
		return nil
	}

	for mc.size+size > mc.maxSize && mc.lruList.Len() > 0 {
		mc.evictLRU()
	}

	element := mc.lruList.PushFront(&cacheEntry{
		Rules:     rules,
		Size:      size,
		ExpiresAt: time.Now().Add(ttl),
		Key:       key,
	})
	mc.store[key] = element
	mc.size += size

	log.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Int64("size_bytes", size).
		Msg("Cached stylesheet")

	return nil
}

// Delete removes an entry.
func (mc *MemoryCache) Delete(key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[key]; exists {
		mc.removeElement(element)
		log.Debug().Str("key", key).Msg("Deleted from stylesheet cache")
	}
	return nil
}

// Clear drops every entry and resets counters.
func (mc *MemoryCache) Clear() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.store = make(map[string]*list.Element)
	mc.lruList = list.New()
	mc.size = 0
	mc.hits = 0
	mc.misses = 0

	log.Debug().Msg("Stylesheet cache cleared")
	return nil
}

// Close stops the background cleanup goroutine.
func (mc *MemoryCache) Close() {
	mc.cancel()
	log.Debug().Msg("Stylesheet cache closed")
}

// must be called with lock held
func (mc *MemoryCache) removeElement(element *list.Element) {
	entry := element.Value.(*cacheEntry)
	mc.lruList.Remove(element)
	delete(mc.store, entry.Key)
	mc.size -= entry.Size
}

// must be called with lock held
func (mc *MemoryCache) evictLRU() {
	element := mc.lruList.Back()
	if element == nil {
		return
	}
	key := element.Value.(*cacheEntry).Key
	mc.removeElement(element)
	log.Debug().Str("key", key).Msg("Evicted from stylesheet cache (LRU)")
}

func (mc *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := time.Now()
			var next *list.Element
			for element := mc.lruList.Front(); element != nil; element = next {
				next = element.Next()
				if now.After(element.Value.(*cacheEntry).ExpiresAt) {
					mc.removeElement(element)
				}
			}
			mc.mu.Unlock()
		case <-mc.ctx.Done():
			log.Debug().Msg("Stylesheet cache cleanup routine stopped")
			return
		}
	}
}

// Stats returns cache statistics including hit rate.
func (mc *MemoryCache) Stats() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	hitRate := 0.0
	total := mc.hits + mc.misses
	if total > 0 {
		hitRate = float64(mc.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"entries":     mc.lruList.Len(),
		"size_bytes":  mc.size,
		"max_size":    mc.maxSize,
		"utilization": float64(mc.size) / float64(mc.maxSize) * 100,
		"hits":        mc.hits,
		"misses":      mc.misses,
		"hit_rate":    hitRate,
	}
}

// KeyForContent derives a cache key from stylesheet text.
func KeyForContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
