package reddit

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/scanner"
)

// Scanner names as registered in scanner.Registry.
const (
	ScannerPosts    = "posts"
	ScannerComments = "comments"
	ScannerSearch   = "search"
)

var subredditExpr = regexp.MustCompile(`/r/([^/]+)/`)

// FeedScanner is one feed strategy over a shared FeedClient.
type FeedScanner struct {
	name     string
	itemType domain.ItemType
	baseURL  string
	client   *FeedClient
}

// NewPostsScanner reads /r/{subreddit}/new.rss.
func NewPostsScanner(client *FeedClient, baseURL string) *FeedScanner {
	return &FeedScanner{name: ScannerPosts, itemType: domain.TypePost, baseURL: baseURL, client: client}
}

// NewCommentsScanner reads /r/{subreddit}/comments.rss.
func NewCommentsScanner(client *FeedClient, baseURL string) *FeedScanner {
	return &FeedScanner{name: ScannerComments, itemType: domain.TypeComment, baseURL: baseURL, client: client}
}

// NewSearchScanner reads the site-wide /search.rss sorted by new.
func NewSearchScanner(client *FeedClient, baseURL string) *FeedScanner {
	return &FeedScanner{name: ScannerSearch, itemType: domain.TypeSearch, baseURL: baseURL, client: client}
}

// Name identifies the strategy inside the registry.
func (s *FeedScanner) Name() string {
	return s.name
}

// Scan fetches the feed for req.Target and returns at most req.Limit items.
func (s *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if strings.TrimSpace(req.Target) == "" {
		return nil, fmt.Errorf("%s scanner: empty target", s.name)
	}

	feedURL, err := buildFeedURL(s.baseURL, s.itemType, req.Target, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.name, req.Target, err)
	}

	entries, err := s.client.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.name, req.Target, err)
	}

	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	items := make([]domain.Item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, s.toItem(entry, req.Target))
	}
	return items, nil
}

func (s *FeedScanner) toItem(entry Entry, target string) domain.Item {
	item := domain.Item{
		ID:        entry.ID,
		Type:      s.itemType,
		Title:     entry.Title,
		Content:   entry.Content,
		Subreddit: target,
		Link:      entry.Link,
		Author:    entry.Author,
		Published: entry.Published,
	}
	if s.itemType == domain.TypeSearch {
		item.Subreddit = SubredditFromLink(entry.Link)
		item.SearchKeyword = target
	}
	return item
}

// SubredditFromLink extracts the community from a post link, or "unknown".
func SubredditFromLink(link string) string {
	if m := subredditExpr.FindStringSubmatch(link); len(m) == 2 {
		return m[1]
	}
	return "unknown"
}

func buildFeedURL(base string, itemType domain.ItemType, target string, limit int) (string, error) {
	parsed, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", base, err)
	}

	query := url.Values{}
	switch itemType {
	case domain.TypePost:
		parsed = parsed.JoinPath("r", target, "new.rss")
	case domain.TypeComment:
		parsed = parsed.JoinPath("r", target, "comments.rss")
	case domain.TypeSearch:
		parsed = parsed.JoinPath("search.rss")
		query.Set("q", target)
		query.Set("sort", "new")
	default:
		return "", fmt.Errorf("unsupported item type %q", itemType)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
