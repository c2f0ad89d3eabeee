package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/aggregator"
	"github.com/LJTian/NewsHub/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const defaultResultTTL = 5 * time.Minute

// ResultCache 用 Redis 缓存聚合结果，缓存故障只记录日志，不影响主流程
type ResultCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewResultCache(rdb *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &ResultCache{rdb: rdb, ttl: ttl}
}

// ResultKey 由查询与参数生成缓存 key，数据源顺序不影响结果
func ResultKey(query string, opts aggregator.Options) string {
	sources := make([]string, 0, len(opts.Sources))
	for _, s := range opts.Sources {
		sources = append(sources, string(s))
	}
	slices.Sort(sources)

	raw := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(query)),
		strings.ToLower(opts.Category),
		strings.Join(sources, ","),
		strconv.Itoa(opts.MaxArticles),
		strconv.FormatBool(opts.KeepDuplicates),
	}, "|")

	h := sha1.Sum([]byte(raw))
	return "news:agg:" + hex.EncodeToString(h[:])
}

// Get 未命中或出错时返回 (nil, false)
func (c *ResultCache) Get(ctx context.Context, key string) (*aggregator.Result, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	bs, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.CacheRequests.WithLabelValues("error").Inc()
			log.Printf("cache: get %s: %v", key, err)
			return nil, false
		}
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	}

	var res aggregator.Result
	if err := json.Unmarshal(bs, &res); err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		log.Printf("cache: decode %s: %v", key, err)
		return nil, false
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return &res, true
}

// Set 空结果不缓存，避免上游短暂故障被放大
func (c *ResultCache) Set(ctx context.Context, key string, res *aggregator.Result) error {
	if c == nil || c.rdb == nil || res == nil || res.TotalArticles == 0 {
		return nil
	}
	bs, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key, bs, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}
