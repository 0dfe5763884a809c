package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hk-market-scraper/models"
	"hk-market-scraper/utils"
)

const indexFile = "last-updated.json"

// CacheStore owns on-disk persistence of district snapshots: one JSON file
// per district plus a shared last-updated index. No other component writes
// under the cache directory.
//
// Writes are guarded against concurrent use within this process only. The
// deployment model is a single server process; a multi-process deployment
// would need file locking or a proper key-value store.
type CacheStore struct {
	mu     sync.Mutex
	dir    string
	logger *utils.Logger
}

// NewCacheStore creates the cache directory if needed and returns the store.
func NewCacheStore(dir string, logger *utils.Logger) (*CacheStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cache: create dir %q: %w", dir, err)
	}
	return &CacheStore{dir: dir, logger: logger}, nil
}

// Save persists a district snapshot, fully overwriting any prior file for
// that district, then merges the district's timestamp into the shared index.
// The index is advisory (reporting only), so a briefly inconsistent merge is
// tolerated.
func (s *CacheStore) Save(cache *models.DistrictCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", cache.District, err)
	}

	path := s.path(cache.District)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cache: write %q: %w", path, err)
	}

	s.updateIndex(cache.District, cache.UpdatedAt)
	s.logger.Debug("[cache] Saved %s (%d listings)", cache.District, len(cache.Listings))
	return nil
}

// Load returns the cached snapshot for a district. A missing or unparseable
// file is a cold start, not an error: ok is false and the caller decides
// what to do.
func (s *CacheStore) Load(district models.District) (*models.DistrictCache, bool) {
	data, err := os.ReadFile(s.path(district))
	if err != nil {
		return nil, false
	}

	var cache models.DistrictCache
	if err := json.Unmarshal(data, &cache); err != nil {
		s.logger.Warn("[cache] Corrupted cache file for %s, treating as absent: %v", district, err)
		return nil, false
	}
	return &cache, true
}

// IsStale reports whether the district's snapshot is older than maxAge. An
// absent cache is always stale; age exactly equal to maxAge counts as stale.
func (s *CacheStore) IsStale(district models.District, maxAge time.Duration) bool {
	cache, ok := s.Load(district)
	if !ok {
		return true
	}
	return time.Since(cache.UpdatedAt) >= maxAge
}

// LastUpdated reads the advisory index mapping district name → last write
// time. Missing or corrupt index yields an empty map.
func (s *CacheStore) LastUpdated() map[string]time.Time {
	out := make(map[string]time.Time)
	for name, stamp := range s.readIndex() {
		t, err := time.Parse(time.RFC3339, stamp)
		if err == nil {
			out[name] = t
		}
	}
	return out
}

func (s *CacheStore) path(district models.District) string {
	return filepath.Join(s.dir, district.Slug()+".json")
}

// updateIndex is read-merge-write; caller holds s.mu.
func (s *CacheStore) updateIndex(district models.District, at time.Time) {
	index := s.readIndex()
	index[string(district)] = at.UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		s.logger.Warn("[cache] Index marshal failed: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, indexFile), data, 0644); err != nil {
		s.logger.Warn("[cache] Index write failed: %v", err)
	}
}

func (s *CacheStore) readIndex() map[string]string {
	index := make(map[string]string)
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if err != nil {
		return index
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return make(map[string]string)
	}
	return index
}
