package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/LJTian/NewsHub/internal/collector"
)

const (
	// DefaultSimilarityThreshold 标题相似度严格大于该值即视为重复
	DefaultSimilarityThreshold = 0.8
	// MinTitleLength 标题长度必须严格大于该值
	MinTitleLength = 10
)

// SimpleProcessor 负责聚合结果的去重、过滤、排序与截断，不持有跨调用状态
type SimpleProcessor struct {
	threshold float64
}

// NewSimpleProcessor threshold 不在 (0,1] 区间时使用默认值 0.8
func NewSimpleProcessor(threshold float64) *SimpleProcessor {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &SimpleProcessor{threshold: threshold}
}

func (p *SimpleProcessor) Threshold() float64 {
	return p.threshold
}

// Deduplicate 先到先得：与任一已保留标题相似度超过阈值的条目被丢弃。
// 两两比较，复杂度 O(n²)，适用于百条量级的结果集。
func (p *SimpleProcessor) Deduplicate(items []collector.Article) []collector.Article {
	out := make([]collector.Article, 0, len(items))
	seen := make([]string, 0, len(items))

	for _, it := range items {
		if it.Title == "" {
			continue
		}
		title := NormalizeTitle(it.Title)

		dup := false
		for _, s := range seen {
			if Similarity(title, s) > p.threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		seen = append(seen, title)
		out = append(out, it)
	}
	return out
}

// Filter 丢弃标题过短或既无 description 也无 summary 的条目
func (p *SimpleProcessor) Filter(items []collector.Article) []collector.Article {
	out := make([]collector.Article, 0, len(items))
	for _, it := range items {
		if len([]rune(it.Title)) <= MinTitleLength {
			continue
		}
		if isBlank(it.Description) && isBlank(it.Summary) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// SortByPublished 按发布时间倒序（稳定排序），缺失时间按 Unix 纪元处理沉底
func (p *SimpleProcessor) SortByPublished(items []collector.Article) {
	slices.SortStableFunc(items, func(a, b collector.Article) int {
		return publishedOrEpoch(b).Compare(publishedOrEpoch(a))
	})
}

// Truncate limit <= 0 时不截断
func (p *SimpleProcessor) Truncate(items []collector.Article, limit int) []collector.Article {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}

// Process 依次执行去重（可选）、过滤、排序、截断
func (p *SimpleProcessor) Process(items []collector.Article, dedup bool, limit int) []collector.Article {
	if dedup {
		items = p.Deduplicate(items)
	}
	items = p.Filter(items)
	p.SortByPublished(items)
	return p.Truncate(items, limit)
}

// NormalizeTitle 小写、去标点、去首尾空白，用于相似度比较
func NormalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}

var epoch = time.Unix(0, 0).UTC()

func publishedOrEpoch(a collector.Article) time.Time {
	if a.PublishedAt == nil {
		return epoch
	}
	return *a.PublishedAt
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// HashURL 归档表主键，按 URL 生成
func HashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
