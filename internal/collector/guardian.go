package collector

import (
	"context"
	"net/url"
	"strconv"
)

const guardianSourceName = "The Guardian"

// GuardianFetcher 对接 The Guardian Open Platform。
// 该接口没有分类头条，始终走 /search，无关键词时搜索 "news"。
type GuardianFetcher struct {
	cfg ProviderConfig
}

func (g *GuardianFetcher) ID() SourceID  { return SourceGuardian }
func (g *GuardianFetcher) Name() string  { return g.cfg.Name }
func (g *GuardianFetcher) Enabled() bool { return g.cfg.APIKey != "" }

type guardianResp struct {
	Response struct {
		Status  string            `json:"status"`
		Total   int               `json:"total"`
		Results []guardianArticle `json:"results"`
	} `json:"response"`
}

type guardianArticle struct {
	ID                 string `json:"id"`
	SectionName        string `json:"sectionName"`
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
	WebPublicationDate string `json:"webPublicationDate"`
	Fields             struct {
		TrailText string `json:"trailText"`
		Thumbnail string `json:"thumbnail"`
		BodyText  string `json:"bodyText"`
		Byline    string `json:"byline"`
	} `json:"fields"`
}

func (g *GuardianFetcher) buildURL(query string, opts FetchOptions) string {
	q := query
	if q == "" {
		q = "news"
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("page-size", strconv.Itoa(g.cfg.pageSize(opts.PageSize)))
	v.Set("show-fields", "trailText,thumbnail,bodyText,byline")
	v.Set("api-key", g.cfg.APIKey)
	return g.cfg.BaseURL + "/search?" + v.Encode()
}

func (g *GuardianFetcher) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Article, error) {
	return fetchAndNormalize(ctx, g.cfg, g.buildURL(query, opts), func(r *guardianResp) []Article {
		out := make([]Article, 0, len(r.Response.Results))
		for _, a := range r.Response.Results {
			out = append(out, g.normalize(a))
		}
		return out
	})
}

// trailText 缺失时以标题兜底，保证摘要不为空
func (g *GuardianFetcher) normalize(a guardianArticle) Article {
	desc := firstNonEmpty(a.Fields.TrailText, a.WebTitle)
	return Article{
		Title:       a.WebTitle,
		Description: optString(desc),
		Summary:     optString(desc),
		Content:     optString(firstNonEmpty(a.Fields.BodyText, a.Fields.TrailText)),
		URL:         optString(a.WebURL),
		ImageURL:    optString(a.Fields.Thumbnail),
		PublishedAt: parsePublished(a.WebPublicationDate),
		SourceName:  guardianSourceName,
		Author:      optString(a.Fields.Byline),
		APISource:   SourceGuardian,
	}
}
