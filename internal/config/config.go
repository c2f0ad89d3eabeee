package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string
	CacheTTL time.Duration

	// 聚合参数
	SimilarityThreshold float64
	MaxArticles         int

	// 各新闻数据源的 API key，缺失即禁用该数据源
	NewsAPIKey  string
	GNewsKey    string
	NewsDataKey string
	GuardianKey string
	CurrentsKey string

	GeminiAPIKey string
	GeminiModel  string

	// 全站 Basic Auth，两者都配置时启用
	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	cfg := &Config{
		AppPort:             getEnv("APP_PORT", "9000"),
		PostgresDSN:         getEnv("POSTGRES_DSN", "host=localhost user=newshub password=newshub dbname=newshub port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		CronSpec:            getEnv("CRON_SPEC", "*/30 * * * *"),
		CacheTTL:            getEnvDuration("CACHE_TTL", 5*time.Minute),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.8),
		MaxArticles:         getEnvInt("MAX_ARTICLES", 100),
		NewsAPIKey:          os.Getenv("NEWSAPI_API_KEY"),
		GNewsKey:            os.Getenv("GNEWS_API_KEY"),
		NewsDataKey:         os.Getenv("NEWSDATA_API_KEY"),
		GuardianKey:         os.Getenv("GUARDIAN_API_KEY"),
		CurrentsKey:         os.Getenv("CURRENTS_API_KEY"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		BasicAuthUser:       os.Getenv("APP_BASIC_USER"),
		BasicAuthPass:       os.Getenv("APP_BASIC_PASS"),
	}

	log.Printf("config loaded: port=%s cron=%s sources=%d/%d", cfg.AppPort, cfg.CronSpec, cfg.configuredSources(), len(collector.AllSources))
	return cfg
}

// SourceKeys 以数据源标识索引的 API key
func (c *Config) SourceKeys() map[collector.SourceID]string {
	return map[collector.SourceID]string{
		collector.SourceNewsAPI:  c.NewsAPIKey,
		collector.SourceGNews:    c.GNewsKey,
		collector.SourceNewsData: c.NewsDataKey,
		collector.SourceGuardian: c.GuardianKey,
		collector.SourceCurrents: c.CurrentsKey,
	}
}

// ProviderConfigs 显式的数据源配置列表，交给聚合器构造
func (c *Config) ProviderConfigs() []collector.ProviderConfig {
	return collector.DefaultProviderConfigs(c.SourceKeys())
}

func (c *Config) configuredSources() int {
	n := 0
	for _, k := range c.SourceKeys() {
		if k != "" {
			n++
		}
	}
	return n
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("warn: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("warn: invalid %s=%q, using %v", key, v, def)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("warn: invalid %s=%q, using %s", key, v, def)
	}
	return def
}
