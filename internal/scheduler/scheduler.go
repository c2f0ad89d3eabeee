package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/aggregator"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/robfig/cron/v3"
)

const runTimeout = 2 * time.Minute

type Aggregator interface {
	Aggregate(ctx context.Context, query string, opts aggregator.Options) (*aggregator.Result, error)
}

type Archiver interface {
	SaveArticles(ctx context.Context, feed string, items []collector.Article) (int, error)
}

type ResultCache interface {
	Set(ctx context.Context, key string, res *aggregator.Result) error
}

type Scheduler struct {
	cron        *cron.Cron
	agg         Aggregator
	archive     Archiver
	cache       ResultCache
	maxArticles int
}

// New archive 与 cache 均可为 nil，此时只做聚合
func New(spec string, agg Aggregator, archive Archiver, cache ResultCache, maxArticles int) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:        c,
		agg:         agg,
		archive:     archive,
		cache:       cache,
		maxArticles: maxArticles,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮聚合，避免与首屏请求争抢上游配额
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

// Stop 等待正在执行的任务结束
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发聚合
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	log.Println("start aggregate job...")
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, f := range aggregator.Feeds {
		feed := f
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runFeed(ctx, feed)
		}()
	}

	wg.Wait()
	log.Println("aggregate job done (all feeds)")
}

func (s *Scheduler) runFeed(ctx context.Context, feed aggregator.Feed) {
	opts := aggregator.FeedOptions(s.maxArticles)
	res, err := s.agg.Aggregate(ctx, feed.Query, opts)
	if err != nil {
		log.Printf("aggregate %s error: %v", feed.Name, err)
		return
	}
	if res.TotalArticles == 0 {
		log.Printf("aggregate %s got 0 articles", feed.Name)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, storage.ResultKey(feed.Query, opts), res); err != nil {
			log.Printf("cache %s error: %v", feed.Name, err)
		}
	}

	saved := 0
	if s.archive != nil {
		saved, err = s.archive.SaveArticles(ctx, feed.Name, res.Articles)
		if err != nil {
			log.Printf("archive %s error: %v", feed.Name, err)
		}
	}
	log.Printf("%s done, sources=%v articles=%d saved=%d", feed.Name, res.SourcesUsed, res.TotalArticles, saved)
}
