package classifier

import (
	"fmt"
	"strings"
	"text/template"

	"RedditMonitor/internal/config"
	"RedditMonitor/internal/domain"
)

// PromptItem is the view of an item rendered into the batch prompt.
type PromptItem struct {
	Index     int
	Type      domain.ItemType
	Subreddit string
	Title     string
	Content   string
	ExtraInfo string
}

type promptData struct {
	Product config.ProductConfig
	Items   []PromptItem
}

var batchPrompt = template.Must(template.New("batch").Parse(`Role: You are {{with .Product.Persona}}{{.}}{{else}}a helpful community member{{end}}.

Task: Analyze each Reddit item below and decide whether it is relevant to {{.Product.Name}}.

About {{.Product.Name}}: {{.Product.Description}}
{{if .Product.Accept}}
Target Users (ACCEPT these):
{{range .Product.Accept}}- {{.}}
{{end}}{{end}}{{if .Product.Reject}}
REJECT these:
{{range .Product.Reject}}- {{.}}
{{end}}{{end}}
Content Types:
- "post": a Reddit post, reply to the post
- "comment": a Reddit comment, reply to the comment directly
- "search": a search result, treat it like a post

For every ACCEPTED item write a short, casual, empathetic reply (under 50 words):
- Validate their feeling or struggle first
- Be genuinely helpful, not salesy
- Naturally mention that you have been prototyping with {{.Product.Name}} recently
- Sound like a fellow developer, not a marketer

CRITICAL OUTPUT RULES:
1. Output ONLY a JSON array with exactly one object per item index below
2. Do NOT use markdown code blocks
3. Do NOT add any intro or outro text
4. Each object must use this exact structure:
{"index": <item index>, "is_relevant": true/false, "reason": "brief reason", "reply_draft": "reply if accepted, empty string otherwise"}

---
ITEMS TO ANALYZE:
{{range .Items}}
[{{.Index}}]
Type: {{.Type}}
Subreddit: r/{{.Subreddit}}
Title/Context: {{.Title}}
Content: {{.Content}}
{{with .ExtraInfo}}{{.}}
{{end}}{{end}}`))

// RenderPrompt builds the single prompt covering every item of a batch.
func RenderPrompt(product config.ProductConfig, items []PromptItem) (string, error) {
	var sb strings.Builder
	if err := batchPrompt.Execute(&sb, promptData{Product: product, Items: items}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// PromptItems converts a batch into prompt records, truncating content to maxChars runes.
func PromptItems(batch []domain.Item, maxChars int) []PromptItem {
	out := make([]PromptItem, 0, len(batch))
	for i, item := range batch {
		itemType := item.Type
		if itemType == "" {
			itemType = domain.TypePost
		}
		var extra string
		if item.SearchKeyword != "" {
			extra = "Search Keyword: " + item.SearchKeyword
		}
		out = append(out, PromptItem{
			Index:     i,
			Type:      itemType,
			Subreddit: item.Subreddit,
			Title:     item.Title,
			Content:   truncate(item.Content, maxChars),
			ExtraInfo: extra,
		})
	}
	return out
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
