package collector

import (
	"context"
	"net/url"
	"strconv"
)

// NewsAPIFetcher 对接 newsapi.org v2
type NewsAPIFetcher struct {
	cfg ProviderConfig
}

func (n *NewsAPIFetcher) ID() SourceID  { return SourceNewsAPI }
func (n *NewsAPIFetcher) Name() string  { return n.cfg.Name }
func (n *NewsAPIFetcher) Enabled() bool { return n.cfg.APIKey != "" }

type newsAPIResp struct {
	Status   string           `json:"status"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// buildURL 分类优先，其次关键词搜索，否则取头条
func (n *NewsAPIFetcher) buildURL(query string, opts FetchOptions) string {
	v := url.Values{}
	v.Set("language", "en")
	v.Set("pageSize", strconv.Itoa(n.cfg.pageSize(opts.PageSize)))
	v.Set("apiKey", n.cfg.APIKey)

	endpoint := "/top-headlines"
	switch {
	case opts.Category != "":
		v.Set("category", opts.Category)
	case query != "":
		endpoint = "/everything"
		v.Set("q", query)
		v.Set("sortBy", "publishedAt")
	}
	return n.cfg.BaseURL + endpoint + "?" + v.Encode()
}

func (n *NewsAPIFetcher) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Article, error) {
	return fetchAndNormalize(ctx, n.cfg, n.buildURL(query, opts), func(r *newsAPIResp) []Article {
		out := make([]Article, 0, len(r.Articles))
		for _, a := range r.Articles {
			out = append(out, n.normalize(a))
		}
		return out
	})
}

func (n *NewsAPIFetcher) normalize(a newsAPIArticle) Article {
	return Article{
		Title:       a.Title,
		Description: optString(a.Description),
		Summary:     optString(a.Description),
		Content:     optString(a.Content),
		URL:         optString(a.URL),
		ImageURL:    optString(a.URLToImage),
		PublishedAt: parsePublished(a.PublishedAt),
		SourceName:  firstNonEmpty(a.Source.Name, "NewsAPI"),
		Author:      optString(a.Author),
		APISource:   SourceNewsAPI,
	}
}
