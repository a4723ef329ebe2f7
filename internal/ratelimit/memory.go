package ratelimit

import (
	"context"
	"fmt"
	"hash/maphash"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

const (
	defaultMaxBuckets = 100_000
	defaultShards     = 16
)

type MemoryConfig struct {
	// Total buckets kept, least recently used are evicted first
	MaxBuckets int

	// Number of independently locked shards
	Shards int

	// time.Now if not set
	Clock func() time.Time
}

// MemoryStore keeps buckets in process memory
// Buckets are spread over LRU shards, so the memory is bounded and a hot shard does not lock others
type MemoryStore struct {
	shards []*lru.Cache
	seed   maphash.Seed
	clock  func() time.Time
}

func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if cfg.MaxBuckets <= 0 {
		cfg.MaxBuckets = defaultMaxBuckets
	}
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards
	}
	if cfg.Shards > cfg.MaxBuckets {
		cfg.Shards = cfg.MaxBuckets
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	perShard := (cfg.MaxBuckets + cfg.Shards - 1) / cfg.Shards
	shards := make([]*lru.Cache, cfg.Shards)
	for i := range shards {
		cache, err := lru.New(perShard)
		if err != nil {
			return nil, fmt.Errorf("can't create bucket shard. Err: %w", err)
		}
		shards[i] = cache
	}

	return &MemoryStore{
		shards: shards,
		seed:   maphash.MakeSeed(),
		clock:  cfg.Clock,
	}, nil
}

func (s *MemoryStore) Take(_ context.Context, key string, limit Limit) (bool, error) {
	return s.bucket(key, limit).AllowN(s.clock(), 1), nil
}

// Return existing bucket or add new one; of concurrent creators only the first bucket is kept
func (s *MemoryStore) bucket(key string, limit Limit) *rate.Limiter {
	shard := s.shards[maphash.String(s.seed, key)%uint64(len(s.shards))]

	if b, ok := shard.Get(key); ok {
		return b.(*rate.Limiter)
	}

	b := newLimiter(limit)
	if prev, found, _ := shard.PeekOrAdd(key, b); found {
		return prev.(*rate.Limiter)
	}
	return b
}

// Len is the number of buckets kept
func (s *MemoryStore) Len() int {
	n := 0
	for _, shard := range s.shards {
		n += shard.Len()
	}
	return n
}

func newLimiter(limit Limit) *rate.Limiter {
	every := limit.Interval / time.Duration(max(limit.Capacity, 1))
	return rate.NewLimiter(rate.Every(every), limit.Capacity)
}
