// Package field builds the "information field" context of a simulation from
// world-news RSS feeds: recent headlines, the topic clusters they touch and
// a rough crisis level. The engine consumes it as a flat topic list.
package field

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/foresight/internal/config"
)

// Status values reported in a Context.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// maxFeedBytes bounds how much of a feed body is read.
const maxFeedBytes = 4 << 20

// Context is the field context derived from one fetch.
type Context struct {
	Headlines    []string  `json:"headlines"`
	HotTopics    []string  `json:"hot_topics"`
	CrisisLevel  float64   `json:"crisis_level"`
	Timestamp    time.Time `json:"timestamp"`
	Status       string    `json:"status"`
	FeedsFetched int       `json:"feeds_fetched,omitempty"`
}

// Fetcher retrieves and summarizes RSS feeds. It is safe for concurrent use.
type Fetcher struct {
	feeds     []string
	client    *http.Client
	userAgent string
	timeout   time.Duration
	dict      *Dictionary
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// NewFetcher creates a Fetcher from the field configuration. A nil client
// uses http.DefaultClient and a nil logger discards output.
func NewFetcher(cfg config.FieldConfig, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{
		feeds:     append([]string(nil), cfg.Feeds...),
		client:    client,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		dict:      NewDictionary(),
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Feeds returns the configured feed URLs.
func (f *Fetcher) Feeds() []string {
	return append([]string(nil), f.feeds...)
}

// Fetch reads up to maxFeeds of the configured feeds concurrently and builds
// a Context. Feeds that fail are logged and skipped; when no headlines
// survive the Context has status no_data. The only error returned is the
// caller's context being done.
func (f *Fetcher) Fetch(ctx context.Context, maxFeeds int) (*Context, error) {
	feeds := f.feeds
	if maxFeeds >= 0 && maxFeeds < len(feeds) {
		feeds = feeds[:maxFeeds]
	}

	perFeed := make([][]string, len(feeds))
	g, gCtx := errgroup.WithContext(ctx)
	for i, url := range feeds {
		g.Go(func() error {
			xml, err := f.fetchFeed(gCtx, url)
			if err != nil {
				f.logger.Warn("feed fetch failed", "url", url, "error", err)
				return nil
			}
			perFeed[i] = ExtractHeadlines(xml, MaxHeadlinesPerFeed)
			f.logger.Debug("feed fetched", "url", url, "headlines", len(perFeed[i]))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetching field context: %w", err)
	}

	var all []string
	for _, h := range perFeed {
		all = append(all, h...)
	}
	return f.Summarize(all, len(feeds)), nil
}

// Summarize builds a Context from raw headlines in feed order.
func (f *Fetcher) Summarize(headlines []string, feedsFetched int) *Context {
	now := f.nowFunc().UTC()
	if len(headlines) == 0 {
		return &Context{
			Headlines: []string{},
			HotTopics: []string{},
			Timestamp: now,
			Status:    StatusNoData,
		}
	}

	unique := Dedupe(headlines)
	c := &Context{
		HotTopics:    f.dict.HotTopics(unique),
		CrisisLevel:  f.dict.CrisisLevel(unique),
		Timestamp:    now,
		Status:       StatusOK,
		FeedsFetched: feedsFetched,
	}
	if len(unique) > MaxHeadlines {
		unique = unique[:MaxHeadlines]
	}
	c.Headlines = unique
	return c
}

// TopicsForEngine fetches a fresh context and flattens it into engine topics.
func (f *Fetcher) TopicsForEngine(ctx context.Context, maxFeeds int) ([]string, *Context, error) {
	c, err := f.Fetch(ctx, maxFeeds)
	if err != nil {
		return nil, nil, err
	}
	return TopicsForEngine(c), c, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, url string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return "", fmt.Errorf("reading feed: %w", err)
	}
	return strings.ToValidUTF8(string(body), "�"), nil
}
