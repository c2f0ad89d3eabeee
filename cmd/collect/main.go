package main

import (
	"log"

	"github.com/LJTian/NewsHub/internal/aggregator"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/joho/godotenv"
)

// 一个仅执行一次聚合任务的命令行入口：适合手动触发归档与缓存预热
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 确保各个渠道存在（与 cmd/api 保持一致）
	providerCfgs := cfg.ProviderConfigs()
	if err := store.EnsureChannels(providerCfgs); err != nil {
		log.Fatalf("ensure channels failed: %v", err)
	}

	providers, err := collector.NewProviders(providerCfgs)
	if err != nil {
		log.Fatalf("init providers failed: %v", err)
	}
	agg := aggregator.New(providers, processor.NewSimpleProcessor(cfg.SimilarityThreshold))
	cache := storage.NewResultCache(store.Redis, cfg.CacheTTL)

	s, err := scheduler.New(cfg.CronSpec, agg, store, cache, cfg.MaxArticles)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	// 只执行一轮聚合任务后退出
	s.RunOnce()
}
