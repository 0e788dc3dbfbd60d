package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"coupon_spider/internal/config"
	"coupon_spider/internal/extract"
	"coupon_spider/internal/fetcher"
	"coupon_spider/internal/models"
	"coupon_spider/internal/robots"
	urlqueue "coupon_spider/internal/url_queue"
)

type PermissionChecker interface {
	Allowed(ctx context.Context, rawURL string) bool
}

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type ContentExtractor interface {
	Text(rawHTML string) string
	Article(rawHTML, pageURL string) models.ExtractedArticle
}

// Sink receives accepted documents and one history row per URL outcome.
// Sink failures are logged and never abort a run.
type Sink interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	SaveSpiderHistory(ctx context.Context, history *models.CrawlHistory) error
}

// CouponSpider runs the generate, check, fetch, extract and filter pipeline
// over one numbered range of pages.
type CouponSpider struct {
	target  config.TargetConfig
	workers int
	delay   time.Duration
	marker  string

	checker   PermissionChecker
	fetcher   PageFetcher
	extractor ContentExtractor
	sink      Sink
	logger    *slog.Logger

	source string
	runID  string

	mu      sync.Mutex
	results map[string]models.ResultRecord
	stats   models.RunStats
}

type Option func(*CouponSpider)

func WithChecker(c PermissionChecker) Option {
	return func(s *CouponSpider) { s.checker = c }
}

func WithFetcher(f PageFetcher) Option {
	return func(s *CouponSpider) { s.fetcher = f }
}

func WithExtractor(e ContentExtractor) Option {
	return func(s *CouponSpider) { s.extractor = e }
}

func WithSink(sink Sink) Option {
	return func(s *CouponSpider) { s.sink = sink }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *CouponSpider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCouponSpider validates cfg and wires the default robots checker,
// fetcher and extractor. Options replace any of them.
func NewCouponSpider(cfg *config.SpiderConfig, opts ...Option) (*CouponSpider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &CouponSpider{
		target:  cfg.Target,
		workers: cfg.Logic.MaxConcurrentWorkers,
		delay:   time.Duration(cfg.Logic.DelayMS) * time.Millisecond,
		marker:  cfg.Filter.ExclusionMarker,
		logger:  slog.Default(),
		results: make(map[string]models.ResultRecord),
	}
	if u, err := url.Parse(cfg.Target.BaseURL); err == nil {
		s.source = u.Host
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.checker == nil {
		robotsURL := cfg.Target.RobotsURL
		if robotsURL == "" {
			var err error
			robotsURL, err = urlqueue.RobotsURL(cfg.Target.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("derive robots.txt location: %w", err)
			}
		}
		s.checker = robots.NewChecker(robotsURL, cfg.Logic.UserAgent,
			robots.WithCache(cfg.Logic.CacheRobots),
			robots.WithLogger(s.logger),
		)
	}
	if s.fetcher == nil {
		s.fetcher = fetcher.New(
			secondsToDuration(cfg.Logic.TimeoutSec),
			cfg.Logic.UserAgent,
			fetcher.WithMaxAttempts(cfg.Logic.MaxRetries),
			fetcher.WithRetryDelay(secondsToDuration(cfg.Logic.RetryDelaySec)),
			fetcher.WithLogger(s.logger),
		)
	}
	if s.extractor == nil {
		s.extractor = extract.NewExtractor(s.logger)
	}

	return s, nil
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// Run processes every index of the configured range and returns the pages
// that were fetched and do not carry the exclusion marker, keyed by URL.
// It returns once all dispatched work has drained. Per-URL failures only
// show up in logs and by absence from the result.
func (s *CouponSpider) Run(ctx context.Context) (map[string]models.ResultRecord, error) {
	if s.target.Start > s.target.End {
		return nil, fmt.Errorf("%w: start=%d end=%d", config.ErrInvalidRange, s.target.Start, s.target.End)
	}

	began := time.Now()
	s.mu.Lock()
	s.results = make(map[string]models.ResultRecord)
	s.stats = models.RunStats{}
	s.runID = strconv.FormatInt(began.UnixNano(), 36)
	s.mu.Unlock()

	urls := urlqueue.GenerateRangeURLs(s.target.BaseURL, s.target.Param, s.target.Start, s.target.End)
	s.logger.Info("🚀 starting coupon spider",
		"base_url", s.target.BaseURL,
		"param", s.target.Param,
		"start", s.target.Start,
		"end", s.target.End,
		"urls", len(urls),
		"workers", s.workers,
	)

	queue := s.permitted(ctx, urls)

	var workerWg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		workerWg.Add(1)
		go func(workerID int) {
			defer workerWg.Done()
			s.worker(ctx, workerID, queue)
		}(i)
	}
	workerWg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Generated = len(urls)
	s.stats.Duration = time.Since(began)

	out := make(map[string]models.ResultRecord, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out, nil
}

// Stats reports the counters of the most recent Run.
func (s *CouponSpider) Stats() models.RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// permitted checks every URL independently and queues those robots.txt
// allows, preserving index order.
func (s *CouponSpider) permitted(ctx context.Context, urls []string) *urlqueue.URLQueue {
	allowed := make([]bool, len(urls))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, u := range urls {
		g.Go(func() error {
			allowed[i] = s.checker.Allowed(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	queue := urlqueue.NewURLQueue(s.source)
	for i, u := range urls {
		if !allowed[i] {
			s.logger.Debug("robots.txt disallows url", "url", u)
			s.record(ctx, u, models.OutcomeDisallowed, "", 0, nil)
			continue
		}
		queue.Add(u)
	}
	return queue
}

func (s *CouponSpider) worker(ctx context.Context, workerID int, queue *urlqueue.URLQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		urlStr, ok := queue.Get()
		if !ok {
			return
		}

		if s.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.delay):
			}
		}

		s.process(ctx, workerID, urlStr)
	}
}

func (s *CouponSpider) process(ctx context.Context, workerID int, urlStr string) {
	began := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			s.logger.Error("error processing url", "url", urlStr, "worker", workerID, "error", err)
			s.record(ctx, urlStr, models.OutcomeFailed, "", time.Since(began), err)
		}
	}()

	html, err := s.fetcher.Fetch(ctx, urlStr)
	if err != nil {
		s.logger.Info("❌ failed", "url", urlStr, "worker", workerID, "error", err)
		s.record(ctx, urlStr, models.OutcomeFailed, "", time.Since(began), err)
		return
	}

	text := s.extractor.Text(html)
	hash := urlqueue.ComputeContentHash(text)

	if strings.Contains(text, s.marker) {
		s.logger.Info("❌ redeemed coupon skipped", "url", urlStr, "worker", workerID)
		s.record(ctx, urlStr, models.OutcomeRedeemed, hash, time.Since(began), nil)
		return
	}

	s.mu.Lock()
	s.results[urlStr] = models.ResultRecord{HTML: html, Text: text}
	s.mu.Unlock()

	s.logger.Info("✅ unredeemed coupon found", "url", urlStr, "worker", workerID, "text_length", len(text))
	s.record(ctx, urlStr, models.OutcomeAccepted, hash, time.Since(began), nil)
	s.saveDocument(ctx, urlStr, html, text, hash)
}

func (s *CouponSpider) record(ctx context.Context, urlStr string, outcome models.Outcome, hash string, took time.Duration, cause error) {
	s.mu.Lock()
	s.stats.Record(outcome)
	runID := s.runID
	s.mu.Unlock()

	if s.sink == nil {
		return
	}

	history := &models.CrawlHistory{
		RunID:       runID,
		Source:      s.source,
		URL:         urlStr,
		Status:      outcome,
		ContentHash: hash,
		Timestamp:   time.Now().Unix(),
		Duration:    int(took.Milliseconds()),
	}
	if cause != nil {
		history.ErrorMessage = cause.Error()
	}
	if err := s.sink.SaveSpiderHistory(ctx, history); err != nil {
		s.logger.Warn("failed to save crawl history", "url", urlStr, "error", err)
	}
}

func (s *CouponSpider) saveDocument(ctx context.Context, urlStr, html, text, hash string) {
	if s.sink == nil {
		return
	}

	article := s.extractor.Article(html, urlStr)
	now := time.Now().Unix()
	doc := &models.Document{
		URL:           urlStr,
		NormalizedURL: urlqueue.NormalizeURL(urlStr),
		Source:        s.source,
		HTMLContent:   html,
		Title:         article.Title,
		Excerpt:       article.Excerpt,
		Content:       text,
		ContentHash:   hash,
		FirstScraped:  now,
		LastScraped:   now,
		ContentLength: len(text),
	}
	if err := s.sink.SaveDocument(ctx, doc); err != nil {
		s.logger.Warn("❌ failed to save document", "url", urlStr, "error", err)
	}
}
