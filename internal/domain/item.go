package domain

// ItemType tells the classifier how to frame a piece of content.
type ItemType string

const (
	TypePost    ItemType = "post"
	TypeComment ItemType = "comment"
	TypeSearch  ItemType = "search"
)

// ItemTypes lists every known type in reporting order.
var ItemTypes = []ItemType{TypePost, TypeComment, TypeSearch}

// Item is a unit of Reddit content normalized from any feed.
type Item struct {
	ID            string
	Type          ItemType
	Title         string
	Content       string
	Subreddit     string
	Link          string
	Author        string
	Published     string
	SearchKeyword string
	Analysis      *Analysis
}

// LedgerKey returns the identifier used for de-duplication.
func (i Item) LedgerKey() string {
	if i.ID != "" {
		return i.ID
	}
	return i.Link
}

// Analysis is attached to an item once the classifier judged it.
type Analysis struct {
	IsRelevant bool   `json:"is_relevant"`
	Reason     string `json:"reason"`
	ReplyDraft string `json:"reply_draft"`
}

// ClassificationResult is one entry of a batch response. Index is positional
// within the batch, not a global id.
type ClassificationResult struct {
	Index      int
	IsRelevant bool
	Reason     string
	ReplyDraft string
}

// GenerationParams bounds a single completion request.
type GenerationParams struct {
	Temperature     float64
	MaxOutputTokens int
}

// RelevantItems maps batch results back to their items by index and returns
// copies of the relevant ones with Analysis attached. Negative, out of range
// and repeated indices are ignored.
func RelevantItems(batch []Item, results []ClassificationResult) []Item {
	var relevant []Item
	seen := make(map[int]struct{}, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(batch) {
			continue
		}
		if _, dup := seen[r.Index]; dup {
			continue
		}
		seen[r.Index] = struct{}{}
		if !r.IsRelevant {
			continue
		}
		item := batch[r.Index]
		item.Analysis = &Analysis{IsRelevant: true, Reason: r.Reason, ReplyDraft: r.ReplyDraft}
		relevant = append(relevant, item)
	}
	return relevant
}
