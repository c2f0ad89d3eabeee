package collector

import (
	"context"
	"net/url"
	"strconv"
)

// NewsDataFetcher 对接 newsdata.io v1
type NewsDataFetcher struct {
	cfg ProviderConfig
}

func (n *NewsDataFetcher) ID() SourceID  { return SourceNewsData }
func (n *NewsDataFetcher) Name() string  { return n.cfg.Name }
func (n *NewsDataFetcher) Enabled() bool { return n.cfg.APIKey != "" }

type newsDataResp struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Results      []newsDataArticle `json:"results"`
}

type newsDataArticle struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Creator     flexString `json:"creator"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	PubDate     string     `json:"pubDate"`
	ImageURL    string     `json:"image_url"`
	SourceID    string     `json:"source_id"`
}

// NewsData 的分类与关键词共用 /news 接口
func (n *NewsDataFetcher) buildURL(query string, opts FetchOptions) string {
	v := url.Values{}
	v.Set("apikey", n.cfg.APIKey)
	v.Set("language", "en")
	v.Set("size", strconv.Itoa(n.cfg.pageSize(opts.PageSize)))

	switch {
	case opts.Category != "":
		v.Set("category", opts.Category)
	case query != "":
		v.Set("q", query)
	}
	return n.cfg.BaseURL + "/news?" + v.Encode()
}

func (n *NewsDataFetcher) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Article, error) {
	return fetchAndNormalize(ctx, n.cfg, n.buildURL(query, opts), func(r *newsDataResp) []Article {
		out := make([]Article, 0, len(r.Results))
		for _, a := range r.Results {
			out = append(out, n.normalize(a))
		}
		return out
	})
}

func (n *NewsDataFetcher) normalize(a newsDataArticle) Article {
	return Article{
		Title:       a.Title,
		Description: optString(a.Description),
		Summary:     optString(a.Description),
		Content:     optString(firstNonEmpty(a.Content, a.Description)),
		URL:         optString(a.Link),
		ImageURL:    optString(a.ImageURL),
		PublishedAt: parsePublished(a.PubDate),
		SourceName:  firstNonEmpty(a.SourceID, "NewsData"),
		Author:      optString(firstNonEmpty(a.Creator.String(), a.SourceID)),
		APISource:   SourceNewsData,
	}
}
