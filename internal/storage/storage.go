package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Channel 描述一个新闻数据源，例如 newsapi / guardian
type Channel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// News 定时聚合后归档的新闻
type News struct {
	ID            string            `gorm:"primaryKey;size:40" json:"id"`
	Title         string            `gorm:"size:512" json:"title"`
	URL           string            `gorm:"size:1024;uniqueIndex" json:"url"`
	Source        string            `gorm:"size:64;index" json:"source"`
	SourceName    string            `gorm:"size:128" json:"sourceName"`
	Feed          string            `gorm:"size:64;index" json:"feed"`
	Description   string            `gorm:"size:600" json:"description"`
	ImageURL      string            `gorm:"size:1024" json:"imageUrl"`
	Author        string            `gorm:"size:256" json:"author"`
	PublishedAt   time.Time         `gorm:"index" json:"publishedAt"`
	PublishedDate string            `gorm:"size:10;index" json:"publishedDate"` // YYYY-MM-DD (UTC)，用于按日期展示
	ExtraData     datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	descriptionMaxRunes = 600
	listCacheTTL        = 5 * time.Minute
)

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}

	if err := db.AutoMigrate(&Channel{}, &News{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// EnsureChannel 确保某个渠道存在
func (s *Store) EnsureChannel(code, name, baseURL string) (*Channel, error) {
	ch := &Channel{}
	if err := s.DB.Where("code = ?", code).First(ch).Error; err == nil {
		return ch, nil
	}

	ch = &Channel{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(ch).Error; err != nil {
		return nil, err
	}
	return ch, nil
}

// EnsureChannels 为每个数据源建一条渠道记录，未配置 key 的标记为 disabled
func (s *Store) EnsureChannels(cfgs []collector.ProviderConfig) error {
	for _, c := range cfgs {
		ch, err := s.EnsureChannel(string(c.ID), c.Name, c.BaseURL)
		if err != nil {
			return fmt.Errorf("storage: ensure channel %s: %w", c.ID, err)
		}
		status := "active"
		if c.APIKey == "" {
			status = "disabled"
		}
		if ch.Status != status {
			if err := s.DB.Model(ch).Update("status", status).Error; err != nil {
				return fmt.Errorf("storage: update channel %s: %w", c.ID, err)
			}
		}
	}
	return nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toNews 没有 URL 的条目无法做幂等键，返回 false
func toNews(feed string, a collector.Article, now time.Time) (News, bool) {
	url := strings.TrimSpace(deref(a.URL))
	if url == "" || strings.TrimSpace(a.Title) == "" {
		return News{}, false
	}

	// 缺少发布时间时以入库时间代替
	published := now
	if a.PublishedAt != nil {
		published = *a.PublishedAt
	}
	published = published.UTC()

	extra := datatypes.JSONMap{}
	if a.Content != nil {
		extra["content"] = truncateRunesDB(toValidUTF8(*a.Content), 4000)
	}
	if a.Summary != nil {
		extra["summary"] = toValidUTF8(*a.Summary)
	}
	if a.PublishedAt == nil {
		extra["published_missing"] = true
	}

	return News{
		ID:            processor.HashURL(url),
		Title:         truncateRunesDB(toValidUTF8(a.Title), 512),
		URL:           url,
		Source:        string(a.APISource),
		SourceName:    truncateRunesDB(toValidUTF8(a.SourceName), 128),
		Feed:          feed,
		Description:   truncateRunesDB(toValidUTF8(deref(a.Description)), descriptionMaxRunes),
		ImageURL:      truncateRunesDB(deref(a.ImageURL), 1024),
		Author:        truncateRunesDB(toValidUTF8(deref(a.Author)), 256),
		PublishedAt:   published,
		PublishedDate: published.Format("2006-01-02"),
		ExtraData:     extra,
	}, true
}

// SaveArticles 归档一批聚合结果，以 URL 为幂等键，已存在时更新标题与摘要
func (s *Store) SaveArticles(ctx context.Context, feed string, items []collector.Article) (int, error) {
	db := s.DB.WithContext(ctx)
	now := time.Now()
	saved := 0
	for _, a := range items {
		n, ok := toNews(feed, a, now)
		if !ok {
			continue
		}

		row := n
		if err := db.Where("url = ?", n.URL).FirstOrCreate(&row).Error; err != nil {
			return saved, fmt.Errorf("storage: save %s: %w", n.URL, err)
		}
		if err := db.Model(&row).Updates(map[string]any{
			"title":          n.Title,
			"description":    n.Description,
			"image_url":      n.ImageURL,
			"feed":           n.Feed,
			"published_at":   n.PublishedAt,
			"published_date": n.PublishedDate,
		}).Error; err != nil {
			log.Printf("storage: update %s: %v", n.URL, err)
		}
		saved++
	}

	// 列表缓存依赖短 TTL 自然过期，不做通配删除
	return saved, nil
}

// ListNews 按渠道、频道与可选日期返回归档新闻，并使用 Redis 做简单缓存
// channel: 数据源 code，可为空
// feed: 频道名，可为空
// date: 可选，格式 2006-01-02
func (s *Store) ListNews(ctx context.Context, channel, feed string, limit int, date string) ([]News, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("news:list:%s:%s:%d:%s", channel, feed, limit, date)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []News
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []News
	db := s.DB.WithContext(ctx).Model(&News{})
	if channel != "" {
		db = db.Where("source = ?", channel)
	}
	if feed != "" {
		db = db.Where("feed = ?", feed)
	}
	if date != "" {
		db = db.Where("published_date = ?", date)
	}
	if err := db.Order("published_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("storage: list news: %w", err)
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}
	return list, nil
}

// ListPublishedDates 返回有数据的日期列表（倒序），结果缓存 5 分钟
func (s *Store) ListPublishedDates(ctx context.Context, channel string, limit int) ([]string, error) {
	if limit <= 0 || limit > 365 {
		limit = 31
	}
	cacheKey := fmt.Sprintf("news:dates:%s:%d", channel, limit)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []string
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	q := s.DB.WithContext(ctx).Model(&News{}).Distinct("published_date")
	if channel != "" {
		q = q.Where("source = ?", channel)
	}
	var dates []string
	if err := q.Where("published_date <> ''").Order("published_date DESC").Limit(limit).Pluck("published_date", &dates).Error; err != nil {
		return nil, fmt.Errorf("storage: list dates: %w", err)
	}

	if s.Redis != nil && len(dates) > 0 {
		if bs, err := json.Marshal(dates); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}
	return dates, nil
}
