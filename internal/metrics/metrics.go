// Package metrics 暴露聚合链路的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderFetchTotal 按数据源与结果统计抓取次数，status: ok / error
	ProviderFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newshub",
			Name:      "provider_fetch_total",
			Help:      "Total number of provider fetches",
		},
		[]string{"source", "status"},
	)

	// ProviderFetchDuration 单个数据源请求耗时
	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newshub",
			Name:      "provider_fetch_duration_seconds",
			Help:      "Duration of provider fetches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	// ProviderArticles 单个数据源返回的条数
	ProviderArticles = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newshub",
			Name:      "provider_articles",
			Help:      "Distribution of articles returned per provider fetch",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"source"},
	)

	// AggregationTotal 聚合次数，outcome: ok / no_sources / all_failed
	AggregationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newshub",
			Name:      "aggregation_total",
			Help:      "Total number of aggregation runs",
		},
		[]string{"outcome"},
	)

	// DuplicatesDropped 去重阶段丢弃的条数
	DuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newshub",
			Name:      "duplicates_dropped_total",
			Help:      "Total number of near-duplicate articles dropped",
		},
	)

	// CacheRequests 结果缓存命中情况，result: hit / miss / error
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newshub",
			Name:      "cache_requests_total",
			Help:      "Total number of aggregation cache lookups",
		},
		[]string{"result"},
	)

	// GenerationTotal 文本生成调用，kind 为错误分类，成功时为 ok
	GenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newshub",
			Name:      "generation_total",
			Help:      "Total number of text generation calls",
		},
		[]string{"kind"},
	)
)
