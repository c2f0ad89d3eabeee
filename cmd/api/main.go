package main

import (
	"context"
	"log"

	"github.com/LJTian/NewsHub/internal/aggregator"
	"github.com/LJTian/NewsHub/internal/api"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/LJTian/NewsHub/internal/textgen"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 每个数据源一条渠道记录，未配置 key 的标记为 disabled
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
	s.Start()
	defer s.Stop()

	var gen api.Generator
	gemini, err := textgen.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Printf("warn: text generation disabled: %v", err)
	} else {
		gen = textgen.NewClient(gemini)
	}

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(agg, cache, store, gen, cfg.MaxArticles)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
