package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/metrics"
	"github.com/LJTian/NewsHub/internal/processor"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxArticles = 100
	SortByPublishedAt  = "publishedAt"
	// GeneralQuery 未指定关键词时回显的查询
	GeneralQuery = "general"
)

var (
	// ErrNoSourcesConfigured 请求的数据源均未配置 API key，属于配置问题
	ErrNoSourcesConfigured = errors.New("aggregator: no news sources configured")
	// ErrAllSourcesFailed 已分发的数据源全部失败
	ErrAllSourcesFailed = errors.New("aggregator: all news sources failed")
)

// Options 单次聚合参数，零值即默认：全部数据源、去重、最多 100 条
type Options struct {
	Sources     []collector.SourceID
	MaxArticles int
	// KeepDuplicates 为 true 时跳过标题去重
	KeepDuplicates bool
	Category       string
	SortBy         string
}

// Result 聚合结果；SourcesUsed 是已配置且参与分发的数据源，不代表一定有数据
type Result struct {
	Articles      []collector.Article  `json:"articles"`
	TotalArticles int                  `json:"totalArticles"`
	SourcesUsed   []collector.SourceID `json:"sourcesUsed"`
	Query         string               `json:"query"`
}

// SourceStatus 用于健康检查展示
type SourceStatus struct {
	ID         collector.SourceID `json:"id"`
	Name       string             `json:"name"`
	Configured bool               `json:"configured"`
}

type Aggregator struct {
	providers []collector.Provider
	processor *processor.SimpleProcessor
}

// New providers 的顺序即分发与拼接顺序
func New(providers []collector.Provider, p *processor.SimpleProcessor) *Aggregator {
	if p == nil {
		p = processor.NewSimpleProcessor(processor.DefaultSimilarityThreshold)
	}
	return &Aggregator{providers: providers, processor: p}
}

// Sources 返回全部数据源的配置状态
func (a *Aggregator) Sources() []SourceStatus {
	out := make([]SourceStatus, 0, len(a.providers))
	for _, p := range a.providers {
		out = append(out, SourceStatus{ID: p.ID(), Name: p.Name(), Configured: p.Enabled()})
	}
	return out
}

// Aggregate 并发请求所有生效的数据源，等待全部结束后合并、去重、过滤、排序并截断。
// 单个数据源失败不影响整体；没有可用数据源或全部失败时返回空结果和对应的哨兵错误。
func (a *Aggregator) Aggregate(ctx context.Context, query string, opts Options) (*Result, error) {
	query = strings.TrimSpace(query)
	maxArticles := opts.MaxArticles
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}
	if opts.SortBy != "" && opts.SortBy != SortByPublishedAt {
		log.Printf("aggregator: unsupported sortBy %q, using %s", opts.SortBy, SortByPublishedAt)
	}

	effective := a.effectiveProviders(opts.Sources)
	result := &Result{
		Articles:    []collector.Article{},
		SourcesUsed: make([]collector.SourceID, 0, len(effective)),
		Query:       query,
	}
	if result.Query == "" {
		result.Query = GeneralQuery
	}
	for _, p := range effective {
		result.SourcesUsed = append(result.SourcesUsed, p.ID())
	}

	log.Printf("aggregate news: query=%q category=%q sources=%v", result.Query, opts.Category, result.SourcesUsed)

	if len(effective) == 0 {
		metrics.AggregationTotal.WithLabelValues("no_sources").Inc()
		return result, ErrNoSourcesConfigured
	}

	// 按分发位置写入各自的槽位，拼接顺序与完成先后无关
	slots := make([][]collector.Article, len(effective))
	errs := make([]error, len(effective))
	fetchOpts := collector.FetchOptions{Category: opts.Category}

	var g errgroup.Group
	for i, p := range effective {
		g.Go(func() error {
			slots[i], errs[i] = fetchOne(ctx, p, query, fetchOpts)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}

	var all []collector.Article
	failed := 0
	for i := range effective {
		if errs[i] != nil {
			failed++
			continue
		}
		all = append(all, slots[i]...)
	}
	log.Printf("aggregate news: fetched=%d failed_sources=%d", len(all), failed)

	if failed == len(effective) {
		metrics.AggregationTotal.WithLabelValues("all_failed").Inc()
		return result, ErrAllSourcesFailed
	}

	if !opts.KeepDuplicates {
		before := len(all)
		all = a.processor.Deduplicate(all)
		metrics.DuplicatesDropped.Add(float64(before - len(all)))
		log.Printf("aggregate news: after dedup %d unique", len(all))
	}
	all = a.processor.Filter(all)
	a.processor.SortByPublished(all)
	all = a.processor.Truncate(all, maxArticles)

	if all != nil {
		result.Articles = all
	}
	result.TotalArticles = len(result.Articles)
	metrics.AggregationTotal.WithLabelValues("ok").Inc()
	log.Printf("aggregate news: returning %d articles", result.TotalArticles)
	return result, nil
}

// effectiveProviders 请求集合与已配置集合的交集，保持 providers 原有顺序
func (a *Aggregator) effectiveProviders(requested []collector.SourceID) []collector.Provider {
	want := make(map[collector.SourceID]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}

	out := make([]collector.Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if len(requested) > 0 && !want[p.ID()] {
			continue
		}
		if !p.Enabled() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// fetchOne 调用单个数据源并记录指标；数据源 panic 也只算作该源失败
func fetchOne(ctx context.Context, p collector.Provider, query string, opts collector.FetchOptions) (articles []collector.Article, err error) {
	source := string(p.ID())
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			articles, err = nil, fmt.Errorf("%s: panic: %v", source, r)
			log.Printf("aggregator: %v", err)
		}
		metrics.ProviderFetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ProviderFetchTotal.WithLabelValues(source, "error").Inc()
			return
		}
		metrics.ProviderFetchTotal.WithLabelValues(source, "ok").Inc()
		metrics.ProviderArticles.WithLabelValues(source).Observe(float64(len(articles)))
	}()

	return p.Fetch(ctx, query, opts)
}
