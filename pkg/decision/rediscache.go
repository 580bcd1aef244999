package decision

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/tenantguard/iamcore/pkg/catalog"
	"github.com/tenantguard/iamcore/pkg/rbac"
)

// RedisCache is a shared permission cache for multi-instance deployments.
// Failures degrade to cache misses; the cache never fails a decision.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// NewRedisCache connects to Redis at the given URL and verifies the
// connection.
func NewRedisCache(redisURL string, ttl time.Duration, log *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisCache{client: client, ttl: ttl, log: log}, nil
}

// Get retrieves a cached permission set.
func (c *RedisCache) Get(ctx context.Context, key string) (rbac.PermissionSet, bool) {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("permission cache read failed")
		return nil, false
	}

	var keys []string
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("permission cache entry corrupt")
		return nil, false
	}

	set := make(rbac.PermissionSet, len(keys))
	for _, k := range keys {
		p, err := catalog.Parse(k)
		if err != nil {
			// Stale entry written under an older catalog; treat as a miss.
			return nil, false
		}
		set.Add(p)
	}
	return set, true
}

// Set stores a permission set with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, set rbac.PermissionSet) {
	perms := set.List()
	keys := make([]string, len(perms))
	for i, p := range perms {
		keys[i] = p.String()
	}

	data, err := json.Marshal(keys)
	if err != nil {
		c.log.WithError(err).Warn("permission cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("permission cache write failed")
	}
}

// Delete evicts a key.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("permission cache delete failed")
	}
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
