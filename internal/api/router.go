package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/LJTian/NewsHub/internal/aggregator"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/LJTian/NewsHub/internal/textgen"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Aggregator interface {
	Aggregate(ctx context.Context, query string, opts aggregator.Options) (*aggregator.Result, error)
	Sources() []aggregator.SourceStatus
}

type Cache interface {
	Get(ctx context.Context, key string) (*aggregator.Result, bool)
	Set(ctx context.Context, key string, res *aggregator.Result) error
}

type Archive interface {
	ListNews(ctx context.Context, channel, feed string, limit int, date string) ([]storage.News, error)
	ListPublishedDates(ctx context.Context, channel string, limit int) ([]string, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Server struct {
	agg         Aggregator
	cache       Cache
	archive     Archive
	gen         Generator
	maxArticles int
}

// NewServer cache、archive、gen 可为 nil，对应接口降级
func NewServer(agg Aggregator, cache Cache, archive Archive, gen Generator, maxArticles int) *Server {
	if maxArticles <= 0 {
		maxArticles = aggregator.DefaultMaxArticles
	}
	return &Server{agg: agg, cache: cache, archive: archive, gen: gen, maxArticles: maxArticles}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.feedHandler(aggregator.DefaultFeed))
		for _, f := range aggregator.Feeds {
			v1.GET("/news/"+f.Name, s.feedHandler(f.Name))
		}
		v1.GET("/news/category/:category", s.categoryNews)
		v1.GET("/news/search", s.searchNews)

		v1.GET("/archive", s.listArchive)
		v1.GET("/archive/dates", s.listArchiveDates)

		v1.POST("/generate", s.generate)
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string, data any) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func (s *Server) health(c *gin.Context) {
	sources := s.agg.Sources()
	configured := map[collector.SourceID]bool{}
	active := 0
	for _, src := range sources {
		configured[src.ID] = src.Configured
		if src.Configured {
			active++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"message":        fmt.Sprintf("%d of %d news sources configured", active, len(sources)),
		"sources":        configured,
		"totalSources":   len(sources),
		"activeSources":  active,
		"recommendation": recommendation(active),
	})
}

func recommendation(active int) string {
	switch {
	case active < 2:
		return "Add more API keys for better coverage"
	case active < 3:
		return "Good! Consider adding 1-2 more sources for redundancy"
	default:
		return "Excellent! You have multiple sources configured"
	}
}

// pageSize 缺省或非法时取默认值，超过上限时截到上限
func (s *Server) pageSize(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("pageSize"))
	if err != nil || n <= 0 {
		return s.maxArticles
	}
	return min(n, s.maxArticles)
}

func (s *Server) feedHandler(name string) gin.HandlerFunc {
	feed, found := aggregator.LookupFeed(name)
	if !found {
		panic("api: unknown feed " + name)
	}
	return func(c *gin.Context) {
		s.respondAggregate(c, feed.Query, aggregator.FeedOptions(s.pageSize(c)))
	}
}

func (s *Server) categoryNews(c *gin.Context) {
	category := strings.ToLower(strings.TrimSpace(c.Param("category")))
	opts := aggregator.Options{
		MaxArticles: s.pageSize(c),
		Category:    category,
	}
	s.respondAggregate(c, aggregator.CategoryQuery(category), opts)
}

func (s *Server) searchNews(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, "invalid_argument", "search query 'q' is required", nil)
		return
	}

	sources, err := parseSources(c.Query("sources"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid_argument", err.Error(), nil)
		return
	}

	opts := aggregator.Options{
		Sources:     sources,
		MaxArticles: s.pageSize(c),
		SortBy:      c.DefaultQuery("sortBy", aggregator.SortByPublishedAt),
	}
	s.respondAggregate(c, q, opts)
}

// parseSources 逗号分隔的数据源列表，空串表示全部
func parseSources(raw string) ([]collector.SourceID, error) {
	var out []collector.SourceID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, known := collector.ParseSourceID(part)
		if !known {
			return nil, fmt.Errorf("unknown source %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Server) respondAggregate(c *gin.Context, query string, opts aggregator.Options) {
	ctx := c.Request.Context()
	key := storage.ResultKey(query, opts)

	if s.cache != nil {
		if res, hit := s.cache.Get(ctx, key); hit {
			c.Header("X-Cache", "HIT")
			ok(c, res)
			return
		}
	}
	c.Header("X-Cache", "MISS")

	res, err := s.agg.Aggregate(ctx, query, opts)
	switch {
	case errors.Is(err, aggregator.ErrNoSourcesConfigured):
		fail(c, http.StatusServiceUnavailable, "no_sources", "no news sources configured", res)
		return
	case errors.Is(err, aggregator.ErrAllSourcesFailed):
		fail(c, http.StatusServiceUnavailable, "sources_unavailable", "all news sources failed", res)
		return
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		fail(c, http.StatusGatewayTimeout, "timeout", "news aggregation timed out", nil)
		return
	case err != nil:
		log.Printf("api: aggregate %q: %v", query, err)
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res); err != nil {
			log.Printf("api: cache set: %v", err)
		}
	}
	ok(c, res)
}

func (s *Server) listArchive(c *gin.Context) {
	if s.archive == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "archive is not configured", nil)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.archive.ListNews(c.Request.Context(), c.Query("channel"), c.Query("feed"), limit, c.Query("date"))
	if err != nil {
		log.Printf("api: list archive: %v", err)
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
		return
	}
	ok(c, items)
}

func (s *Server) listArchiveDates(c *gin.Context) {
	if s.archive == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "archive is not configured", nil)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	dates, err := s.archive.ListPublishedDates(c.Request.Context(), c.Query("channel"), limit)
	if err != nil {
		log.Printf("api: list archive dates: %v", err)
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
		return
	}
	ok(c, dates)
}

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (s *Server) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_argument", "request body must be {\"prompt\": \"...\"}", nil)
		return
	}
	if s.gen == nil {
		fail(c, http.StatusServiceUnavailable, string(textgen.KindConfig), "text generation is not configured", nil)
		return
	}

	text, err := s.gen.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		kind := textgen.KindOf(err)
		log.Printf("api: generate: %v", err)
		fail(c, generateStatus(kind), string(kind), err.Error(), nil)
		return
	}
	ok(c, gin.H{"text": text})
}

func generateStatus(kind textgen.Kind) int {
	switch kind {
	case textgen.KindValidation:
		return http.StatusBadRequest
	case textgen.KindRateLimit:
		return http.StatusTooManyRequests
	case textgen.KindConfig:
		return http.StatusServiceUnavailable
	case textgen.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
