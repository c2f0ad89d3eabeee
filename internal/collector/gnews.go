package collector

import (
	"context"
	"net/url"
	"strconv"
)

// GNewsFetcher 对接 gnews.io v4
type GNewsFetcher struct {
	cfg ProviderConfig
}

func (g *GNewsFetcher) ID() SourceID  { return SourceGNews }
func (g *GNewsFetcher) Name() string  { return g.cfg.Name }
func (g *GNewsFetcher) Enabled() bool { return g.cfg.APIKey != "" }

type gnewsResp struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

func (g *GNewsFetcher) buildURL(query string, opts FetchOptions) string {
	v := url.Values{}
	v.Set("lang", "en")
	v.Set("max", strconv.Itoa(g.cfg.pageSize(opts.PageSize)))
	v.Set("apikey", g.cfg.APIKey)

	endpoint := "/top-headlines"
	switch {
	case opts.Category != "":
		v.Set("category", opts.Category)
	case query != "":
		endpoint = "/search"
		v.Set("q", query)
	}
	return g.cfg.BaseURL + endpoint + "?" + v.Encode()
}

func (g *GNewsFetcher) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Article, error) {
	return fetchAndNormalize(ctx, g.cfg, g.buildURL(query, opts), func(r *gnewsResp) []Article {
		out := make([]Article, 0, len(r.Articles))
		for _, a := range r.Articles {
			out = append(out, g.normalize(a))
		}
		return out
	})
}

// GNews 不返回作者，沿用媒体名
func (g *GNewsFetcher) normalize(a gnewsArticle) Article {
	return Article{
		Title:       a.Title,
		Description: optString(a.Description),
		Summary:     optString(a.Description),
		Content:     optString(a.Content),
		URL:         optString(a.URL),
		ImageURL:    optString(a.Image),
		PublishedAt: parsePublished(a.PublishedAt),
		SourceName:  firstNonEmpty(a.Source.Name, "GNews"),
		Author:      optString(a.Source.Name),
		APISource:   SourceGNews,
	}
}
