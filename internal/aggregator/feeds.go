package aggregator

import "strings"

// Feed 一个命名的新闻频道，对应固定的查询语句
type Feed struct {
	Name  string
	Query string
}

// Feeds 固定频道，定时任务和 HTTP 接口共用
var Feeds = []Feed{
	{Name: "tunisia", Query: "Tunisia"},
	{Name: "mena", Query: "Middle East OR North Africa OR MENA"},
	{Name: "popular", Query: "breaking news OR top stories"},
	{Name: "world", Query: "world news OR international"},
}

// DefaultFeed 首页默认频道
const DefaultFeed = "tunisia"

// LookupFeed 按名称查找频道
func LookupFeed(name string) (Feed, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range Feeds {
		if f.Name == name {
			return f, true
		}
	}
	return Feed{}, false
}

var categoryQueries = map[string]string{
	"business":      "business OR finance OR economy",
	"entertainment": "entertainment OR celebrity OR movies",
	"health":        "health OR medical OR wellness",
	"science":       "science OR research OR technology",
	"sports":        "sports OR football OR basketball",
	"tech":          "technology OR tech OR innovation",
	"technology":    "technology OR tech OR innovation",
	"politics":      "politics OR government OR election",
	"education":     "education OR school OR university",
	"environment":   "environment OR climate OR sustainability",
	"general":       "news OR headlines",
}

// CategoryQuery 把分类映射成更宽的关键词查询，未知分类原样返回
func CategoryQuery(category string) string {
	if q, ok := categoryQueries[strings.ToLower(category)]; ok {
		return q
	}
	return category
}

// FeedOptions 频道聚合参数，定时任务与 HTTP 接口使用相同参数才能命中同一缓存
func FeedOptions(maxArticles int) Options {
	return Options{MaxArticles: maxArticles}
}
