package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// SourceID 标识一个外部新闻 API
type SourceID string

const (
	SourceNewsAPI  SourceID = "newsapi"
	SourceGNews    SourceID = "gnews"
	SourceNewsData SourceID = "newsdata"
	SourceGuardian SourceID = "guardian"
	SourceCurrents SourceID = "currents"
)

// AllSources 固定的分发顺序，聚合时按此顺序拼接结果
var AllSources = []SourceID{
	SourceNewsAPI,
	SourceGNews,
	SourceNewsData,
	SourceGuardian,
	SourceCurrents,
}

// ParseSourceID 校验并返回合法的数据源标识
func ParseSourceID(s string) (SourceID, bool) {
	id := SourceID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSources {
		if id == known {
			return id, true
		}
	}
	return "", false
}

// Article 各数据源归一化后的统一结构，可选字段缺失时为 nil
type Article struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Summary     *string    `json:"summary"`
	Content     *string    `json:"content"`
	URL         *string    `json:"url"`
	ImageURL    *string    `json:"imageUrl"`
	PublishedAt *time.Time `json:"publishedAt"`
	SourceName  string     `json:"sourceName"`
	Author      *string    `json:"author"`
	APISource   SourceID   `json:"apiSource"`
}

// FetchOptions 单次抓取参数；PageSize 只是给上游的提示，为 0 时使用数据源默认值
type FetchOptions struct {
	Category string
	PageSize int
}

// Provider 抽象每一个新闻数据源
type Provider interface {
	ID() SourceID
	Name() string
	// Enabled 未配置 API key 的数据源直接跳过
	Enabled() bool
	Fetch(ctx context.Context, query string, opts FetchOptions) ([]Article, error)
}

const (
	defaultClientTimeout     = 10 * time.Second
	providerMaxResponseBytes = 4 << 20 // 4MB
)

// ProviderConfig 单个数据源的静态配置，运行期间只读
type ProviderConfig struct {
	ID       SourceID
	Name     string
	BaseURL  string
	APIKey   string
	PageSize int
	Timeout  time.Duration
}

func (c ProviderConfig) pageSize(hint int) int {
	if hint > 0 {
		return hint
	}
	return c.PageSize
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultClientTimeout
}

// DefaultProviderConfigs 返回五个数据源的默认配置，keys 以 SourceID 索引
func DefaultProviderConfigs(keys map[SourceID]string) []ProviderConfig {
	return []ProviderConfig{
		{ID: SourceNewsAPI, Name: "NewsAPI", BaseURL: "https://newsapi.org/v2", APIKey: keys[SourceNewsAPI], PageSize: 50, Timeout: defaultClientTimeout},
		{ID: SourceGNews, Name: "GNews", BaseURL: "https://gnews.io/api/v4", APIKey: keys[SourceGNews], PageSize: 10, Timeout: defaultClientTimeout},
		{ID: SourceNewsData, Name: "NewsData.io", BaseURL: "https://newsdata.io/api/1", APIKey: keys[SourceNewsData], PageSize: 10, Timeout: defaultClientTimeout},
		{ID: SourceGuardian, Name: "The Guardian", BaseURL: "https://content.guardianapis.com", APIKey: keys[SourceGuardian], PageSize: 20, Timeout: defaultClientTimeout},
		{ID: SourceCurrents, Name: "Currents API", BaseURL: "https://api.currentsapi.services/v1", APIKey: keys[SourceCurrents], PageSize: 10, Timeout: defaultClientTimeout},
	}
}

// constructors 新增数据源只需在此登记
var constructors = map[SourceID]func(ProviderConfig) Provider{
	SourceNewsAPI:  func(c ProviderConfig) Provider { return &NewsAPIFetcher{cfg: c} },
	SourceGNews:    func(c ProviderConfig) Provider { return &GNewsFetcher{cfg: c} },
	SourceNewsData: func(c ProviderConfig) Provider { return &NewsDataFetcher{cfg: c} },
	SourceGuardian: func(c ProviderConfig) Provider { return &GuardianFetcher{cfg: c} },
	SourceCurrents: func(c ProviderConfig) Provider { return &CurrentsFetcher{cfg: c} },
}

// NewProvider 根据配置构造对应的数据源实现
func NewProvider(cfg ProviderConfig) (Provider, error) {
	ctor, ok := constructors[cfg.ID]
	if !ok {
		return nil, fmt.Errorf("collector: unknown source %q", cfg.ID)
	}
	return ctor(cfg), nil
}

// NewProviders 按配置顺序构造全部数据源
func NewProviders(cfgs []ProviderConfig) ([]Provider, error) {
	out := make([]Provider, 0, len(cfgs))
	for _, c := range cfgs {
		p, err := NewProvider(c)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// getJSON 发起一次带超时的 GET 请求并解码 JSON 响应
func getJSON(ctx context.Context, source SourceID, timeout time.Duration, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", source, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "NewsHubBot/1.0")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request: %w", source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, providerMaxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", source, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: unexpected status %d: %s", source, resp.StatusCode, upstreamMessage(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", source, err)
	}
	return nil
}

// upstreamMessage 尽量从错误响应中取出 message 字段，便于日志排查
func upstreamMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	s := strings.TrimSpace(string(body))
	if rs := []rune(s); len(rs) > 200 {
		s = string(rs[:200])
	}
	return s
}

// fetchAndNormalize 是各数据源共用的抓取流程：未配置 key 时静默返回空
func fetchAndNormalize[T any](ctx context.Context, cfg ProviderConfig, rawURL string, extract func(*T) []Article) ([]Article, error) {
	if cfg.APIKey == "" {
		log.Printf("%s: api key not configured, skipping", cfg.ID)
		return nil, nil
	}

	log.Printf("fetch %s...", cfg.Name)

	var resp T
	if err := getJSON(ctx, cfg.ID, cfg.timeout(), rawURL, &resp); err != nil {
		ferr := &FetchError{Source: cfg.ID, Err: err, apiKey: cfg.APIKey}
		log.Printf("fetch %s failed: %v", cfg.Name, ferr)
		return nil, ferr
	}

	articles := extract(&resp)
	log.Printf("%s: %d articles", cfg.Name, len(articles))
	return articles, nil
}

// FetchError 包装单个数据源的抓取失败，Error() 中不包含 API key
type FetchError struct {
	Source SourceID
	Err    error
	apiKey string
}

func (e *FetchError) Error() string {
	return redactKey(e.Err.Error(), e.apiKey)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// redactKey 避免 API key 随 URL 出现在日志里
func redactKey(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "***")
}
