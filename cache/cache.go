// Package cache holds the analytics cache and staleness layer: namespaced
// Redis payload entries plus a per-company metadata entry recording the last
// sync timestamp the cached analytics were computed from.
//
// The component is injected (constructed once in main, passed to handlers and
// the sync coordinator) so it can be swapped for a nil-client instance in
// tests. A nil Redis client degrades to always-miss/no-op: the service keeps
// serving from the store when Redis is down.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	SourceCache        = "cache"
	SourceMaterialized = "materialized"
	SourceRecomputed   = "recomputed"
)

type AnalyticsCache struct {
	mu     sync.RWMutex
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *logrus.Logger
}

func NewAnalyticsCache(rdb redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *AnalyticsCache {
	return &AnalyticsCache{rdb: rdb, ttl: ttl, logger: logger}
}

// UseClient attaches (or replaces) the Redis client in place. The server
// starts serving before Redis is connected, so the cache begins life
// clientless and gets the real client here once the connection is up.
func (c *AnalyticsCache) UseClient(rdb redis.UniversalClient) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rdb = rdb
	c.mu.Unlock()
}

func (c *AnalyticsCache) client() redis.UniversalClient {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rdb
}

func (c *AnalyticsCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// AgingKey namespaces cached aging payloads by company and entity-type filter.
// entityType may be empty ("both").
func AgingKey(companyGuid, entityType string) string {
	if entityType == "" {
		return fmt.Sprintf("aging:%s", companyGuid)
	}
	return fmt.Sprintf("aging:%s:%s", companyGuid, entityType)
}

func ScoresKey(companyGuid string) string {
	return fmt.Sprintf("scores:%s", companyGuid)
}

// SyncMetaKey is the per-company staleness metadata entry.
func SyncMetaKey(companyGuid string) string {
	return fmt.Sprintf("syncmeta:%s", companyGuid)
}

// Get unmarshals the payload at key into dest. Returns false on a miss or
// when Redis is not connected.
func (c *AnalyticsCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	rdb := c.client()
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *AnalyticsCache) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	rdb := c.client()
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.TTL()
	}
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}

func (c *AnalyticsCache) Invalidate(ctx context.Context, keys ...string) error {
	rdb := c.client()
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

// InvalidateCompany drops every analytics entry for the company, metadata
// included. The sync coordinator calls this AFTER the engines' writes commit,
// so a reader racing the invalidation either sees the old consistent payload
// or recomputes from the new rows - never stale cache over half-written
// analytics.
func (c *AnalyticsCache) InvalidateCompany(ctx context.Context, companyGuid string) error {
	keys := []string{
		AgingKey(companyGuid, ""),
		AgingKey(companyGuid, "customer"),
		AgingKey(companyGuid, "vendor"),
		ScoresKey(companyGuid),
		SyncMetaKey(companyGuid),
	}
	err := c.Invalidate(ctx, keys...)
	if err != nil && c != nil && c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"module":      "cache",
			"companyGuid": companyGuid,
		}).Warnf("invalidate failed: %v", err)
	}
	return err
}

type syncMeta struct {
	MaxSyncAt time.Time `json:"max_sync_at"`
}

// GetSyncMeta returns the last-seen max sync timestamp for the company, or
// nil when no metadata exists.
func (c *AnalyticsCache) GetSyncMeta(ctx context.Context, companyGuid string) (*time.Time, error) {
	var meta syncMeta
	ok, err := c.Get(ctx, SyncMetaKey(companyGuid), &meta)
	if err != nil || !ok {
		return nil, err
	}
	t := meta.MaxSyncAt
	return &t, nil
}

func (c *AnalyticsCache) SetSyncMeta(ctx context.Context, companyGuid string, maxSyncAt time.Time) error {
	// Metadata outlives the payload TTL on purpose: payload expiry alone must
	// not force a recompute when no new sync has landed.
	return c.Set(ctx, SyncMetaKey(companyGuid), syncMeta{MaxSyncAt: maxSyncAt}, 24*time.Hour)
}

// NeedsRefresh decides whether cached analytics are stale. Recompute when the
// live max sync timestamp is strictly newer than the cached metadata, when no
// metadata exists, or on an explicit force request. liveMax may be zero when
// the company has no synced rows at all; that alone never forces a refresh.
func NeedsRefresh(liveMax time.Time, cachedMax *time.Time, force bool) bool {
	if force {
		return true
	}
	if cachedMax == nil {
		return true
	}
	return liveMax.After(*cachedMax)
}
