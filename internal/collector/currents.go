package collector

import (
	"context"
	"net/url"
)

const currentsSourceName = "Currents API"

// CurrentsFetcher 对接 currentsapi.services v1，不支持分类，也不接受条数参数
type CurrentsFetcher struct {
	cfg ProviderConfig
}

func (c *CurrentsFetcher) ID() SourceID  { return SourceCurrents }
func (c *CurrentsFetcher) Name() string  { return c.cfg.Name }
func (c *CurrentsFetcher) Enabled() bool { return c.cfg.APIKey != "" }

type currentsResp struct {
	Status string            `json:"status"`
	News   []currentsArticle `json:"news"`
}

type currentsArticle struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Author      flexString `json:"author"`
	Image       string     `json:"image"`
	Published   string     `json:"published"`
}

func (c *CurrentsFetcher) buildURL(query string, _ FetchOptions) string {
	v := url.Values{}
	v.Set("language", "en")
	v.Set("apiKey", c.cfg.APIKey)
	if query != "" {
		v.Set("keywords", query)
		return c.cfg.BaseURL + "/search?" + v.Encode()
	}
	return c.cfg.BaseURL + "/latest-news?" + v.Encode()
}

func (c *CurrentsFetcher) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Article, error) {
	return fetchAndNormalize(ctx, c.cfg, c.buildURL(query, opts), func(r *currentsResp) []Article {
		out := make([]Article, 0, len(r.News))
		for _, a := range r.News {
			out = append(out, c.normalize(a))
		}
		return out
	})
}

func (c *CurrentsFetcher) normalize(a currentsArticle) Article {
	return Article{
		Title:       a.Title,
		Description: optString(a.Description),
		Summary:     optString(a.Description),
		Content:     optString(a.Description),
		URL:         optString(a.URL),
		ImageURL:    optString(currentsImage(a.Image)),
		PublishedAt: parsePublished(a.Published),
		SourceName:  currentsSourceName,
		Author:      optString(a.Author.String()),
		APISource:   SourceCurrents,
	}
}

// Currents 在无配图时返回字面量 "None"
func currentsImage(s string) string {
	if s == "None" {
		return ""
	}
	return s
}
