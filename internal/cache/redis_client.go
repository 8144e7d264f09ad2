package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// orgConfigTTL bounds how stale a cached org config can get
const orgConfigTTL = 15 * time.Minute

// scanBatch keys per SCAN page during pattern invalidation
const scanBatch = 100

// Client is the shared Redis layer of the org-config cache. Values are
// JSON-encoded and expire after orgConfigTTL.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient connects to Redis and pings it so a bad address fails at startup
// rather than on the first request
func NewClient(ctx context.Context, host string, port int, password string) (*Client, error) {
	if host == "" {
		return nil, errors.New("redis host missing")
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	logger := slog.Default().With("component", "redis")
	logger.Info("redis connected", "addr", addr)
	return &Client{rdb: rdb, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck pings the server; used by the status command
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get unmarshals the value at key into target. The bool reports whether the
// key was present; a miss is not an error.
func (c *Client) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	c.logger.Debug("cache hit", "key", key)
	return true, nil
}

// Set stores value at key with the org-config TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, orgConfigTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeletePattern removes every key matching pattern via cursored SCAN, so
// invalidation never blocks the server the way KEYS would. Returns the
// number of keys deleted.
func (c *Client) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del %s: %w", pattern, err)
	}
	c.logger.Info("invalidated cached config", "pattern", pattern, "deleted", deleted)
	return deleted, nil
}

// OrgConfigKey is "orgcfg:<org_id>:<kind>", e.g. "orgcfg:acme:health_rules"
func OrgConfigKey(orgID, kind string) string {
	return fmt.Sprintf("orgcfg:%s:%s", orgID, kind)
}

// OrgConfigPattern matches every cached config entry for an org
func OrgConfigPattern(orgID string) string {
	return fmt.Sprintf("orgcfg:%s:*", orgID)
}
