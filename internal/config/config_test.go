package config

import (
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	t.Setenv(key, "")
	assert.Equal(t, "9000", getEnv(key, "9000"))

	// 环境变量设置后，应优先返回环境变量
	t.Setenv(key, "8080")
	assert.Equal(t, "8080", getEnv(key, "9000"))
}

func TestTypedEnvFallbacks(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	t.Setenv("TEST_FLOAT", "0.9")
	t.Setenv("TEST_DURATION", "90s")

	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))
	assert.Equal(t, 0.9, getEnvFloat("TEST_FLOAT", 0.8))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Minute))
}

func TestLoadReadsSourceKeysAndAuth(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("GUARDIAN_API_KEY", "g-key")
	t.Setenv("NEWSAPI_API_KEY", "")
	t.Setenv("CACHE_TTL", "")

	cfg := Load()
	assert.Equal(t, "1234", cfg.AppPort)
	assert.Equal(t, "user", cfg.BasicAuthUser)
	assert.Equal(t, "pass", cfg.BasicAuthPass)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)

	pcs := cfg.ProviderConfigs()
	require.Len(t, pcs, len(collector.AllSources))
	for i, pc := range pcs {
		assert.Equal(t, collector.AllSources[i], pc.ID)
		if pc.ID == collector.SourceGuardian {
			assert.Equal(t, "g-key", pc.APIKey)
		}
		if pc.ID == collector.SourceNewsAPI {
			assert.Empty(t, pc.APIKey)
		}
	}
}
