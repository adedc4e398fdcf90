// Package store provides seen-key storage using Bloom filters and LRU cache.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SeenStore is a thread-safe set of keys already handled by the pipeline:
// dedup keys for tracks, artist names already expanded during fallback
// search. A Bloom filter front-loads the common negative case, the LRU
// bounds memory by evicting the oldest keys.
type SeenStore struct {
	keys                   map[string]struct{}
	bloom                  *bloom.BloomFilter
	lru                    *lru.Cache[string, struct{}]
	mutex                  sync.RWMutex
	maxKeys                int
	bloomFalsePositiveRate float64
}

// NewSeenStore creates a seen-key store with the specified capacity and
// Bloom false positive rate.
func NewSeenStore(maxKeys int, bloomFalsePositiveRate float64) *SeenStore {
	lruCache, _ := lru.New[string, struct{}](maxKeys)

	if maxKeys < 0 || maxKeys > int(^uint(0)>>1) {
		panic("maxKeys value out of range for uint conversion")
	}
	bloomFilter := bloom.NewWithEstimates(uint(maxKeys), bloomFalsePositiveRate)

	return &SeenStore{
		keys:                   make(map[string]struct{}),
		bloom:                  bloomFilter,
		lru:                    lruCache,
		maxKeys:                maxKeys,
		bloomFalsePositiveRate: bloomFalsePositiveRate,
	}
}

// Has checks if a key exists in the store.
func (ss *SeenStore) Has(key string) bool {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	if !ss.bloom.TestString(key) {
		return false
	}

	_, exists := ss.keys[key]
	return exists
}

// Add adds a key to the store, evicting the oldest key when over capacity.
func (ss *SeenStore) Add(key string) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if _, exists := ss.keys[key]; exists {
		return
	}

	ss.keys[key] = struct{}{}
	ss.bloom.AddString(key)
	ss.lru.Add(key, struct{}{})

	if len(ss.keys) > ss.maxKeys {
		ss.evictOldest()
	}
}

// Size returns the number of keys currently stored.
func (ss *SeenStore) Size() int {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return len(ss.keys)
}

// Clear removes all keys from the store.
func (ss *SeenStore) Clear() {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	ss.keys = make(map[string]struct{})
	if ss.maxKeys < 0 || ss.maxKeys > int(^uint(0)>>1) {
		panic("maxKeys value out of range for uint conversion")
	}
	ss.bloom = bloom.NewWithEstimates(uint(ss.maxKeys), ss.bloomFalsePositiveRate)
	ss.lru.Purge()
}

func (ss *SeenStore) evictOldest() {
	if ss.lru.Len() == 0 {
		return
	}

	oldestKey, _, ok := ss.lru.GetOldest()
	if !ok {
		return
	}

	delete(ss.keys, oldestKey)
	ss.lru.Remove(oldestKey)
}
