package core

// cache.go provides the key/value store for loaded record sets.
//
// There is no eviction: entries live until Remove or Clear. That suits small,
// session-scoped datasets that are loaded once. Cache has a single logical
// owner and no locking; SyncCache layers a mutex on top for shared use.

import (
	"reflect"
	"sort"
	"sync"
	"time"
)

// Memory estimate heuristics. These are rough sizing weights, not measurements.
const (
	EstimatedEntryBytes   = 256 // Per cached value that is not a collection
	EstimatedElementBytes = 64  // Per element of a slice, array or map value
)

// CacheEntry is one stored value.
type CacheEntry struct {
	Key          string
	Value        any
	StoredAt     time.Time
	LoadDuration time.Duration // Zero when not recorded
}

// CacheStatistics is a snapshot of cache usage.
type CacheStatistics struct {
	Entries             int            `json:"entries"`
	Hits                uint64         `json:"hits"`
	Misses              uint64         `json:"misses"`
	HitRate             float64        `json:"hitRate"`
	EstimatedBytes      int64          `json:"estimatedBytes"`
	AverageLoadDuration time.Duration  `json:"averageLoadDuration"`
	TypeCounts          map[string]int `json:"typeCounts"`
}

// CacheStore is the cache contract shared by Cache and SyncCache.
type CacheStore interface {
	Set(key string, value any, loadDuration time.Duration)
	Get(key string) (any, bool)
	Contains(key string) bool
	Remove(key string) bool
	Clear()
	Keys() []string
	Statistics() CacheStatistics
}

// Cache is an unsynchronized key/value store with hit and miss counters.
type Cache struct {
	entries map[string]*CacheEntry
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*CacheEntry),
		now:     time.Now,
	}
}

// Set stores value under key, replacing any previous value. loadDuration is
// how long the value took to produce; pass 0 when unknown.
func (c *Cache) Set(key string, value any, loadDuration time.Duration) {
	c.entries[key] = &CacheEntry{
		Key:          key,
		Value:        value,
		StoredAt:     c.now(),
		LoadDuration: loadDuration,
	}
}

// Get returns the value for key and counts a hit or a miss.
func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.Value, true
}

// Entry returns the full entry for key without touching the counters.
func (c *Cache) Entry(key string) (CacheEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	return *e, true
}

// Contains reports whether key is stored, without touching the counters.
func (c *Cache) Contains(key string) bool {
	_, ok := c.entries[key]
	return ok
}

// Remove deletes key and reports whether it was present.
func (c *Cache) Remove(key string) bool {
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.entries = make(map[string]*CacheEntry)
	c.hits = 0
	c.misses = 0
}

// Keys returns the stored keys, sorted.
func (c *Cache) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Statistics computes a usage snapshot.
func (c *Cache) Statistics() CacheStatistics {
	stats := CacheStatistics{
		Entries:    len(c.entries),
		Hits:       c.hits,
		Misses:     c.misses,
		TypeCounts: make(map[string]int),
	}

	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}

	var timed int
	var loadTotal time.Duration
	for _, e := range c.entries {
		stats.EstimatedBytes += estimateBytes(e.Value)
		stats.TypeCounts[valueTypeName(e.Value)]++
		if e.LoadDuration > 0 {
			timed++
			loadTotal += e.LoadDuration
		}
	}
	if timed > 0 {
		stats.AverageLoadDuration = loadTotal / time.Duration(timed)
	}

	return stats
}

func estimateBytes(v any) int64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return int64(rv.Len()) * EstimatedElementBytes
	default:
		return EstimatedEntryBytes
	}
}

func valueTypeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}

// SyncCache is a Cache guarded by a mutex. Get takes the write lock because
// it updates the counters.
type SyncCache struct {
	mu    sync.Mutex
	cache *Cache
}

// NewSyncCache creates an empty synchronized cache.
func NewSyncCache() *SyncCache {
	return &SyncCache{cache: NewCache()}
}

// Set stores value under key; see Cache.Set.
func (s *SyncCache) Set(key string, value any, loadDuration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, value, loadDuration)
}

// Get returns the value for key and counts a hit or miss.
func (s *SyncCache) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(key)
}

// Contains reports whether key is cached without counting a lookup.
func (s *SyncCache) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Contains(key)
}

// Remove drops key and reports whether it was present.
func (s *SyncCache) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Remove(key)
}

// Clear drops every entry and resets the counters.
func (s *SyncCache) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Clear()
}

// Keys returns the cached keys, sorted.
func (s *SyncCache) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Keys()
}

// Statistics returns a usage snapshot.
func (s *SyncCache) Statistics() CacheStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Statistics()
}
