// Package prefilter applies cheap keyword gates before content reaches the classifier.
package prefilter

import (
	"log/slog"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/ports"
)

// KeywordFilter drops items matching exclusion keywords and floats items
// matching relevance keywords to the front. Matching is case-insensitive
// substring search over title and content.
type KeywordFilter struct {
	exclude   *ahocorasick.Matcher
	relevance *ahocorasick.Matcher
	logger    *slog.Logger
}

var _ ports.PreFilter = (*KeywordFilter)(nil)

// New compiles both keyword lists. Blank keywords are ignored.
func New(exclude, relevance []string, log *slog.Logger) *KeywordFilter {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &KeywordFilter{
		exclude:   compile(exclude),
		relevance: compile(relevance),
		logger:    log,
	}
}

func compile(keywords []string) *ahocorasick.Matcher {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		normalized = append(normalized, kw)
	}
	if len(normalized) == 0 {
		return nil
	}
	return ahocorasick.NewStringMatcher(normalized)
}

func haystack(item domain.Item) []byte {
	return []byte(strings.ToLower(item.Title + " " + item.Content))
}

func matches(m *ahocorasick.Matcher, item domain.Item) bool {
	if m == nil {
		return false
	}
	return len(m.Match(haystack(item))) > 0
}

// Filter keeps items that contain no exclusion keyword, in their original order.
func (f *KeywordFilter) Filter(items []domain.Item) []domain.Item {
	if f.exclude == nil {
		return items
	}

	kept := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if matches(f.exclude, item) {
			continue
		}
		kept = append(kept, item)
	}
	f.logger.Info("pre-filter", "kept", len(kept), "excluded", len(items)-len(kept))
	return kept
}

// Prioritize is a stable partition: items with a relevance keyword come first.
func (f *KeywordFilter) Prioritize(items []domain.Item) []domain.Item {
	if f.relevance == nil || len(items) == 0 {
		return items
	}

	ordered := make([]domain.Item, 0, len(items))
	var rest []domain.Item
	for _, item := range items {
		if matches(f.relevance, item) {
			ordered = append(ordered, item)
		} else {
			rest = append(rest, item)
		}
	}
	f.logger.Debug("prioritized", "with_keyword", len(ordered), "without", len(rest))
	return append(ordered, rest...)
}

// HasRelevanceKeyword reports whether item mentions any relevance keyword.
func (f *KeywordFilter) HasRelevanceKeyword(item domain.Item) bool {
	return matches(f.relevance, item)
}
