// Package reddit polls Reddit's public RSS/Atom feeds and turns entries into items.
package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	maxFeedBytes     = 5 << 20
)

// Entry is a raw feed entry before it is typed as a post, comment or search hit.
type Entry struct {
	ID        string
	Title     string
	Content   string
	Link      string
	Author    string
	Published string
}

// FeedClient downloads and parses feeds, spacing consecutive requests by a fixed delay.
type FeedClient struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewFeedClient wires an HTTP client; delay is the minimum gap between requests.
func NewFeedClient(client *http.Client, userAgent string, delay time.Duration) *FeedClient {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &FeedClient{
		client:    client,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Fetch retrieves feedURL and returns its entries in document order.
func (c *FeedClient) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/xml, text/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, toEntry(item))
	}
	return entries, nil
}

func toEntry(item *gofeed.Item) Entry {
	id := strings.TrimSpace(item.GUID)
	link := strings.TrimSpace(item.Link)
	if id == "" {
		id = link
	}

	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = item.Description
	}

	author := "unknown"
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		author = strings.TrimSpace(item.Author.Name)
	} else {
		for _, a := range item.Authors {
			if a != nil && strings.TrimSpace(a.Name) != "" {
				author = strings.TrimSpace(a.Name)
				break
			}
		}
	}

	published := item.Published
	if published == "" {
		published = item.Updated
	}

	return Entry{
		ID:        id,
		Title:     strings.TrimSpace(item.Title),
		Content:   CleanHTML(content),
		Link:      link,
		Author:    author,
		Published: published,
	}
}
