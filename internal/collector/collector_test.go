package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(id SourceID, baseURL, key string) ProviderConfig {
	for _, c := range DefaultProviderConfigs(nil) {
		if c.ID == id {
			c.BaseURL = baseURL
			c.APIKey = key
			return c
		}
	}
	panic("unknown source " + string(id))
}

func mustProvider(t *testing.T, cfg ProviderConfig) Provider {
	t.Helper()
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	return p
}

func parseBuilt(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNewsAPINormalize(t *testing.T) {
	t.Run("maps every field", func(t *testing.T) {
		var raw newsAPIArticle
		require.NoError(t, json.Unmarshal([]byte(`{
			"title": "T", "description": "D", "url": "U", "urlToImage": "I",
			"publishedAt": "2024-01-01", "source": {"name": "X"}
		}`), &raw))

		a := (&NewsAPIFetcher{}).normalize(raw)

		assert.Equal(t, "T", a.Title)
		require.NotNil(t, a.Description)
		assert.Equal(t, "D", *a.Description)
		require.NotNil(t, a.URL)
		assert.Equal(t, "U", *a.URL)
		require.NotNil(t, a.ImageURL)
		assert.Equal(t, "I", *a.ImageURL)
		require.NotNil(t, a.PublishedAt)
		assert.True(t, a.PublishedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, "X", a.SourceName)
		assert.Equal(t, SourceNewsAPI, a.APISource)
	})

	t.Run("missing optional fields become nil", func(t *testing.T) {
		a := (&NewsAPIFetcher{}).normalize(newsAPIArticle{Title: "Only a title here"})

		assert.Nil(t, a.Description)
		assert.Nil(t, a.Summary)
		assert.Nil(t, a.Content)
		assert.Nil(t, a.URL)
		assert.Nil(t, a.ImageURL)
		assert.Nil(t, a.PublishedAt)
		assert.Nil(t, a.Author)
		assert.Equal(t, "NewsAPI", a.SourceName)
	})

	t.Run("missing title is not invented", func(t *testing.T) {
		a := (&NewsAPIFetcher{}).normalize(newsAPIArticle{Description: "D"})
		assert.Empty(t, a.Title)
	})
}

func TestProviderNormalizeMappings(t *testing.T) {
	t.Run("gnews uses source name as author", func(t *testing.T) {
		var raw gnewsArticle
		require.NoError(t, json.Unmarshal([]byte(`{
			"title": "GNews title", "description": "desc", "image": "img",
			"url": "https://g.example/a", "publishedAt": "2024-03-01T10:00:00Z",
			"source": {"name": "Reuters"}
		}`), &raw))

		a := (&GNewsFetcher{}).normalize(raw)
		require.NotNil(t, a.ImageURL)
		assert.Equal(t, "img", *a.ImageURL)
		require.NotNil(t, a.Author)
		assert.Equal(t, "Reuters", *a.Author)
		assert.Equal(t, "Reuters", a.SourceName)
	})

	t.Run("newsdata falls back to description and source id", func(t *testing.T) {
		var raw newsDataArticle
		require.NoError(t, json.Unmarshal([]byte(`{
			"title": "NewsData title", "link": "https://nd.example/a",
			"creator": null, "description": "desc", "content": null,
			"pubDate": "2024-03-01 10:00:00", "image_url": "img", "source_id": "bbc"
		}`), &raw))

		a := (&NewsDataFetcher{}).normalize(raw)
		require.NotNil(t, a.Content)
		assert.Equal(t, "desc", *a.Content)
		require.NotNil(t, a.URL)
		assert.Equal(t, "https://nd.example/a", *a.URL)
		require.NotNil(t, a.Author)
		assert.Equal(t, "bbc", *a.Author)
		assert.Equal(t, "bbc", a.SourceName)
		require.NotNil(t, a.PublishedAt)
		assert.Equal(t, 10, a.PublishedAt.Hour())
	})

	t.Run("newsdata creator list takes first entry", func(t *testing.T) {
		var raw newsDataArticle
		require.NoError(t, json.Unmarshal([]byte(`{"title": "x", "creator": ["Jane Doe", "John"]}`), &raw))

		a := (&NewsDataFetcher{}).normalize(raw)
		require.NotNil(t, a.Author)
		assert.Equal(t, "Jane Doe", *a.Author)
		assert.Equal(t, "NewsData", a.SourceName)
	})

	t.Run("guardian reads nested fields", func(t *testing.T) {
		var raw guardianArticle
		require.NoError(t, json.Unmarshal([]byte(`{
			"webTitle": "Guardian headline", "webUrl": "https://gu.example/a",
			"webPublicationDate": "2024-03-01T10:00:00Z",
			"fields": {"trailText": "trail", "thumbnail": "thumb", "bodyText": "body", "byline": "By Someone"}
		}`), &raw))

		a := (&GuardianFetcher{}).normalize(raw)
		assert.Equal(t, "Guardian headline", a.Title)
		require.NotNil(t, a.Description)
		assert.Equal(t, "trail", *a.Description)
		require.NotNil(t, a.Content)
		assert.Equal(t, "body", *a.Content)
		require.NotNil(t, a.ImageURL)
		assert.Equal(t, "thumb", *a.ImageURL)
		require.NotNil(t, a.Author)
		assert.Equal(t, "By Someone", *a.Author)
		assert.Equal(t, "The Guardian", a.SourceName)
	})

	t.Run("guardian without fields uses title as description", func(t *testing.T) {
		a := (&GuardianFetcher{}).normalize(guardianArticle{WebTitle: "Bare guardian headline"})
		require.NotNil(t, a.Description)
		assert.Equal(t, "Bare guardian headline", *a.Description)
		assert.Nil(t, a.Content)
		assert.Nil(t, a.ImageURL)
	})

	t.Run("currents handles string author and None image", func(t *testing.T) {
		var raw currentsArticle
		require.NoError(t, json.Unmarshal([]byte(`{
			"title": "Currents title", "description": "desc", "url": "https://c.example/a",
			"author": "Alice", "image": "None", "published": "2024-03-01 10:00:00 +0000"
		}`), &raw))

		a := (&CurrentsFetcher{}).normalize(raw)
		require.NotNil(t, a.Author)
		assert.Equal(t, "Alice", *a.Author)
		assert.Nil(t, a.ImageURL)
		require.NotNil(t, a.PublishedAt)
		assert.Equal(t, "Currents API", a.SourceName)
	})
}

func TestBuildURLPrecedence(t *testing.T) {
	const base = "https://api.example"

	t.Run("newsapi", func(t *testing.T) {
		f := &NewsAPIFetcher{cfg: testConfig(SourceNewsAPI, base, "k")}

		u := parseBuilt(t, f.buildURL("ignored", FetchOptions{Category: "business"}))
		assert.Equal(t, "/top-headlines", u.Path)
		assert.Equal(t, "business", u.Query().Get("category"))
		assert.Empty(t, u.Query().Get("q"))

		u = parseBuilt(t, f.buildURL("tunisia elections", FetchOptions{}))
		assert.Equal(t, "/everything", u.Path)
		assert.Equal(t, "tunisia elections", u.Query().Get("q"))
		assert.Equal(t, "publishedAt", u.Query().Get("sortBy"))
		assert.Equal(t, "50", u.Query().Get("pageSize"))

		u = parseBuilt(t, f.buildURL("", FetchOptions{PageSize: 7}))
		assert.Equal(t, "/top-headlines", u.Path)
		assert.Equal(t, "7", u.Query().Get("pageSize"))
		assert.Equal(t, "en", u.Query().Get("language"))
		assert.Equal(t, "k", u.Query().Get("apiKey"))
	})

	t.Run("gnews", func(t *testing.T) {
		f := &GNewsFetcher{cfg: testConfig(SourceGNews, base, "k")}

		u := parseBuilt(t, f.buildURL("q", FetchOptions{Category: "sports"}))
		assert.Equal(t, "/top-headlines", u.Path)
		assert.Equal(t, "sports", u.Query().Get("category"))

		u = parseBuilt(t, f.buildURL("q", FetchOptions{}))
		assert.Equal(t, "/search", u.Path)
		assert.Equal(t, "q", u.Query().Get("q"))
		assert.Equal(t, "10", u.Query().Get("max"))
		assert.Equal(t, "k", u.Query().Get("apikey"))
	})

	t.Run("newsdata", func(t *testing.T) {
		f := &NewsDataFetcher{cfg: testConfig(SourceNewsData, base, "k")}

		u := parseBuilt(t, f.buildURL("q", FetchOptions{Category: "health"}))
		assert.Equal(t, "/news", u.Path)
		assert.Equal(t, "health", u.Query().Get("category"))
		assert.False(t, u.Query().Has("q"))

		u = parseBuilt(t, f.buildURL("", FetchOptions{}))
		assert.False(t, u.Query().Has("q"))
		assert.False(t, u.Query().Has("category"))
		assert.Equal(t, "10", u.Query().Get("size"))
	})

	t.Run("guardian always searches", func(t *testing.T) {
		f := &GuardianFetcher{cfg: testConfig(SourceGuardian, base, "k")}

		u := parseBuilt(t, f.buildURL("", FetchOptions{Category: "science"}))
		assert.Equal(t, "/search", u.Path)
		assert.Equal(t, "news", u.Query().Get("q"))
		assert.Equal(t, "20", u.Query().Get("page-size"))
		assert.Equal(t, "trailText,thumbnail,bodyText,byline", u.Query().Get("show-fields"))
		assert.Equal(t, "k", u.Query().Get("api-key"))
	})

	t.Run("currents", func(t *testing.T) {
		f := &CurrentsFetcher{cfg: testConfig(SourceCurrents, base, "k")}

		u := parseBuilt(t, f.buildURL("mena", FetchOptions{}))
		assert.Equal(t, "/search", u.Path)
		assert.Equal(t, "mena", u.Query().Get("keywords"))

		u = parseBuilt(t, f.buildURL("", FetchOptions{Category: "world"}))
		assert.Equal(t, "/latest-news", u.Path)
	})
}

func TestFetchAgainstServer(t *testing.T) {
	t.Run("decodes and normalizes response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			assert.Equal(t, "secret", r.URL.Query().Get("api-key"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"response": {"status": "ok", "results": [
				{"webTitle": "First guardian story", "webUrl": "https://gu.example/1"},
				{"webTitle": "Second guardian story", "webUrl": "https://gu.example/2"}
			]}}`))
		}))
		defer server.Close()

		p := mustProvider(t, testConfig(SourceGuardian, server.URL, "secret"))
		articles, err := p.Fetch(context.Background(), "tunisia", FetchOptions{})

		require.NoError(t, err)
		require.Len(t, articles, 2)
		assert.Equal(t, "First guardian story", articles[0].Title)
		assert.Equal(t, SourceGuardian, articles[1].APISource)
	})

	t.Run("missing key skips without request", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer server.Close()

		p := mustProvider(t, testConfig(SourceNewsAPI, server.URL, ""))
		assert.False(t, p.Enabled())

		articles, err := p.Fetch(context.Background(), "q", FetchOptions{})
		assert.NoError(t, err)
		assert.Empty(t, articles)
		assert.Zero(t, hits.Load())
	})

	t.Run("non 2xx returns redacted fetch error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status": "error", "message": "apiKey topsecret is invalid"}`))
		}))
		defer server.Close()

		p := mustProvider(t, testConfig(SourceNewsAPI, server.URL, "topsecret"))
		articles, err := p.Fetch(context.Background(), "q", FetchOptions{})

		require.Error(t, err)
		assert.Empty(t, articles)
		var ferr *FetchError
		require.True(t, errors.As(err, &ferr))
		assert.Equal(t, SourceNewsAPI, ferr.Source)
		assert.Contains(t, err.Error(), "401")
		assert.NotContains(t, err.Error(), "topsecret")
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>not json</html>`))
		}))
		defer server.Close()

		p := mustProvider(t, testConfig(SourceGNews, server.URL, "k"))
		_, err := p.Fetch(context.Background(), "", FetchOptions{})
		assert.Error(t, err)
	})

	t.Run("per call timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}))
		defer server.Close()

		cfg := testConfig(SourceCurrents, server.URL, "k")
		cfg.Timeout = 50 * time.Millisecond
		p := mustProvider(t, cfg)

		start := time.Now()
		_, err := p.Fetch(context.Background(), "", FetchOptions{})
		require.Error(t, err)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestNewProviders(t *testing.T) {
	providers, err := NewProviders(DefaultProviderConfigs(map[SourceID]string{SourceGuardian: "k"}))
	require.NoError(t, err)
	require.Len(t, providers, len(AllSources))
	for i, p := range providers {
		assert.Equal(t, AllSources[i], p.ID())
		assert.Equal(t, p.ID() == SourceGuardian, p.Enabled())
	}

	_, err = NewProvider(ProviderConfig{ID: "bing"})
	assert.Error(t, err)
}

func TestParseSourceID(t *testing.T) {
	id, ok := ParseSourceID(" Guardian ")
	assert.True(t, ok)
	assert.Equal(t, SourceGuardian, id)

	_, ok = ParseSourceID("bing")
	assert.False(t, ok)
}

func TestParsePublished(t *testing.T) {
	cases := map[string]bool{
		"2024-01-01T10:00:00Z":      true,
		"2024-01-01T10:00:00+01:00": true,
		"2024-01-01 10:00:00 +0000": true,
		"2024-01-01 10:00:00":       true,
		"2024-01-01":                true,
		"":                          false,
		"yesterday":                 false,
	}
	for in, ok := range cases {
		got := parsePublished(in)
		assert.Equal(t, ok, got != nil, "input %q", in)
	}
}
