// Package cache keeps raw public figshare article payloads in redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nitesh/readme_service/internal/logger"
)

const keyPrefix = "readme:article:"

// ArticleCache stores public article JSON keyed by deployment and article id.
// Review payloads are never cached; their status changes while a curator works.
type ArticleCache struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewArticleCache connects to addr and pings it.
func NewArticleCache(ctx context.Context, addr string, ttl time.Duration, log *logger.Logger) (*ArticleCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, ttl, log), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client, ttl time.Duration, log *logger.Logger) *ArticleCache {
	if log == nil {
		log = logger.Nop()
	}
	return &ArticleCache{rdb: rdb, ttl: ttl, log: log.With("service", "ArticleCache")}
}

func key(articleID int64, stage bool) string {
	env := "production"
	if stage {
		env = "stage"
	}
	return fmt.Sprintf("%s%s:%d", keyPrefix, env, articleID)
}

// Get returns the cached payload. ok is false on a miss or when redis is unreachable.
func (c *ArticleCache) Get(ctx context.Context, articleID int64, stage bool) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key(articleID, stage)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("article cache get failed", "article_id", articleID, "error", err)
		}
		return nil, false
	}
	return raw, true
}

// Set stores raw for the configured TTL. Failures are logged and otherwise ignored.
func (c *ArticleCache) Set(ctx context.Context, articleID int64, stage bool, raw []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key(articleID, stage), raw, c.ttl).Err(); err != nil {
		c.log.Warn("article cache set failed", "article_id", articleID, "error", err)
	}
}

func (c *ArticleCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
