package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/gyeh/cantonhealth/internal/source"
)

const cacheKeyPrefix = "pipeline"

// Memo memoizes pipeline results keyed by the source tuple. Results are
// shared read-only between callers.
type Memo struct {
	cache *cache.Cache
	store source.LayerStore
	log   zerolog.Logger
	runs  int

	// mu serializes recomputation so concurrent misses run the pipeline once.
	mu sync.Mutex
}

// NewMemo creates a Memo. A ttl of zero keeps results until Flush.
func NewMemo(log zerolog.Logger, ttl time.Duration, store source.LayerStore) *Memo {
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, 2*ttl
	}
	return &Memo{
		cache: cache.New(expiration, cleanup),
		store: store,
		log:   log,
	}
}

// CacheKey builds the memo key for a source tuple.
func CacheKey(src Sources) string {
	return GetCacheKey(cacheKeyPrefix, src.Population, src.Facilities, src.Boundaries)
}

// GetCacheKey joins a prefix and parameters into a cache key.
func GetCacheKey(prefix string, params ...any) string {
	key := prefix
	for _, param := range params {
		key += ":" + fmt.Sprintf("%v", param)
	}
	return key
}

// Get returns the memoized result for src, running the pipeline on a miss.
// Errors are not cached.
func (m *Memo) Get(ctx context.Context, src Sources) (*Result, error) {
	key := CacheKey(src)
	if v, ok := m.cache.Get(key); ok {
		return v.(*Result), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.cache.Get(key); ok {
		return v.(*Result), nil
	}

	res, err := Run(ctx, m.log, src, m.store)
	if err != nil {
		return nil, err
	}
	m.runs++
	m.cache.SetDefault(key, res)
	return res, nil
}

// Runs returns how many times the pipeline has been executed.
func (m *Memo) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// Flush drops every memoized result.
func (m *Memo) Flush() {
	m.cache.Flush()
	m.log.Info().Msg("pipeline cache flushed")
}
