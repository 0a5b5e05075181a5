package selector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ice-blockchain/go-dbproxy/config"
)

// CacheKeyPrefix prefixes every health cache key.
const CacheKeyPrefix = "BalancedNodesDb"

// HealthCache stores probe results between units of work.
type HealthCache interface {
	// Get returns ok == false on a miss.
	Get(ctx context.Context, key string) (candidates []Candidate, ok bool, err error)
	Set(ctx context.Context, key string, candidates []Candidate, ttl time.Duration) error
}

// CacheKey identifies a node set. Any change to the ids, hosts, drivers or
// weights of the set yields another key.
func CacheKey(nodes map[string]config.Node) string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sig strings.Builder
	for _, id := range ids {
		n := nodes[id]
		fmt.Fprintf(&sig, "%s|%s|%s|%s|%d\n", id, n.Driver, n.Host, n.Name, n.Weight)
	}
	return CacheKeyPrefix + ":" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(sig.String())).String()
}

type memoryEntry struct {
	candidates []Candidate
	expires    time.Time
}

// MemoryCache keeps probe results in process memory.
type MemoryCache struct {
	entries *xsync.MapOf[string, memoryEntry]
	now     func() time.Time
}

var _ HealthCache = (*MemoryCache)(nil)

// DefaultCache is used by selectors created without a Cache. It outlives
// every Database, so a unit of work reuses the probe results of the previous
// ones until they expire.
var DefaultCache HealthCache = NewMemoryCache()

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: xsync.NewMapOf[string, memoryEntry](),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]Candidate, bool, error) {
	entry, ok := c.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expires) {
		c.entries.Delete(key)
		return nil, false, nil
	}
	return entry.candidates, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, candidates []Candidate, ttl time.Duration) error {
	c.entries.Store(key, memoryEntry{
		candidates: candidates,
		expires:    c.now().Add(ttl),
	})
	return nil
}

// RedisCache shares probe results between processes. Values are msgpack
// encoded.
type RedisCache struct {
	client redis.UniversalClient
}

var _ HealthCache = (*RedisCache)(nil)

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisUniversalClient creates a client from a redis:// URL.
func NewRedisUniversalClient(redisURL string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("can't parse redis url: %w", err)
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{opts.Addr},
		DB:           opts.DB,
		Username:     opts.Username,
		Password:     opts.Password,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		TLSConfig:    opts.TLSConfig,
	}), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Candidate, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("can't read %s from redis: %w", key, err)
	}

	var candidates []Candidate
	if err := msgpack.Unmarshal(b, &candidates); err != nil {
		return nil, false, fmt.Errorf("can't decode %s: %w", key, err)
	}
	return candidates, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, candidates []Candidate, ttl time.Duration) error {
	b, err := msgpack.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("can't encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("can't write %s to redis: %w", key, err)
	}
	return nil
}
