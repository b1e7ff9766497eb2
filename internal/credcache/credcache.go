// Package credcache wraps the credential store with a Redis read-through
// cache. It caches positive verifications only: a miss always falls through
// to the store so a newly issued or re-enabled credential is visible
// immediately, while a hit lets a hot key skip the sqlite round trip for the
// lookup itself — the usage-count bump on a hit is still applied against the
// store, just asynchronously so a hit never waits on it.
package credcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credential"
)

const keyPrefix = "api_key_auth:"

// cacheKeyLen keys the cache on a prefix of the secret rather than the whole
// value, trading a small collision surface for shorter Redis keys.
const cacheKeyLen = 16

type cachedCredential struct {
	ID          int64      `json:"id"`
	Secret      string     `json:"secret"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedBy   string     `json:"created_by"`
	IsAdmin     bool       `json:"is_admin"`
	IsActive    bool       `json:"is_active"`
	UsageCount  int64      `json:"usage_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// Verifier is the subset of *credential.Store the cache sits in front of.
type Verifier interface {
	Verify(ctx context.Context, secret string) (credential.Credential, error)
}

type Cache struct {
	rdb      *redis.Client
	store    Verifier
	ttl      time.Duration
	enabled  bool // false once the initial health probe fails; degrades to direct-store mode
}

// New connects to Redis and probes it once with PING. If the probe fails the
// cache degrades to passing every call straight through to store rather than
// retrying the connection on every request — a dead cache must never make the
// gateway unavailable.
func New(ctx context.Context, redisURL string, ttl time.Duration, store Verifier) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("credcache: parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	c := &Cache{rdb: rdb, store: store, ttl: ttl}
	if err := c.HealthCheck(ctx); err != nil {
		c.enabled = false
		return c, nil
	}
	c.enabled = true
	return c, nil
}

// HealthCheck pings Redis and records whether the cache is usable.
func (c *Cache) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.enabled = false
		return fmt.Errorf("credcache: ping failed: %w", err)
	}
	c.enabled = true
	return nil
}

func (c *Cache) Enabled() bool { return c.enabled }

func cacheKey(secret string) string {
	prefixLen := cacheKeyLen
	if len(secret) < prefixLen {
		prefixLen = len(secret)
	}
	return keyPrefix + secret[:prefixLen]
}

// Verify checks the cache before falling through to the store. A cache hit
// still must match the full presented secret (the cache key only covers a
// prefix), so collisions on the short key never grant access to the wrong
// credential.
func (c *Cache) Verify(ctx context.Context, secret string) (credential.Credential, error) {
	if !c.enabled {
		return c.store.Verify(ctx, secret)
	}

	key := cacheKey(secret)
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var cached cachedCredential
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil && cached.Secret == secret {
			// The store still owns usage accounting; bump it in the
			// background so a cache hit never blocks on the sqlite write.
			go func() {
				_, _ = c.store.Verify(context.Background(), secret)
			}()
			return credential.Credential{
				ID:          cached.ID,
				Secret:      cached.Secret,
				Name:        cached.Name,
				Description: cached.Description,
				CreatedBy:   cached.CreatedBy,
				IsAdmin:     cached.IsAdmin,
				IsActive:    cached.IsActive,
				UsageCount:  cached.UsageCount,
				CreatedAt:   cached.CreatedAt,
				ExpiresAt:   cached.ExpiresAt,
				LastUsedAt:  cached.LastUsedAt,
			}, nil
		}
		// Cache entry was malformed or belonged to a colliding prefix; fall through.
	} else if err != redis.Nil {
		// Redis itself is unhealthy; don't let a flaky cache fail the request.
		_ = c.HealthCheck(ctx)
	}

	cred, verifyErr := c.store.Verify(ctx, secret)
	if verifyErr != nil {
		return credential.Credential{}, verifyErr
	}

	c.set(ctx, key, cred)
	return cred, nil
}

func (c *Cache) set(ctx context.Context, key string, cred credential.Credential) {
	payload, err := json.Marshal(cachedCredential{
		ID:          cred.ID,
		Secret:      cred.Secret,
		Name:        cred.Name,
		Description: cred.Description,
		CreatedBy:   cred.CreatedBy,
		IsAdmin:     cred.IsAdmin,
		IsActive:    cred.IsActive,
		UsageCount:  cred.UsageCount,
		CreatedAt:   cred.CreatedAt,
		ExpiresAt:   cred.ExpiresAt,
		LastUsedAt:  cred.LastUsedAt,
	})
	if err != nil {
		return
	}
	// Best-effort: a failed SETEX just means the next lookup misses the cache.
	_ = c.rdb.SetEx(ctx, key, payload, c.ttl).Err()
}

// Invalidate removes a cached entry, used after revocation or any other
// mutation that would otherwise leave a stale positive cached.
func (c *Cache) Invalidate(ctx context.Context, secret string) error {
	if !c.enabled {
		return nil
	}
	if err := c.rdb.Del(ctx, cacheKey(secret)).Err(); err != nil {
		return apierr.Wrap(apierr.Internal, "invalidating cache entry", err)
	}
	return nil
}

func (c *Cache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
