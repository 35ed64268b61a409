package feishu

import (
	"fmt"
	"strings"

	"RedditMonitor/internal/domain"
)

const previewChars = 300

type message struct {
	MsgType string `json:"msg_type"`
	Card    card   `json:"card"`
}

type card struct {
	Config   *cardConfig `json:"config,omitempty"`
	Header   header      `json:"header"`
	Elements []element   `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type header struct {
	Title    text   `json:"title"`
	Template string `json:"template"`
}

type text struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type field struct {
	IsShort bool `json:"is_short"`
	Text    text `json:"text"`
}

type action struct {
	Tag  string `json:"tag"`
	Text text   `json:"text"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type element struct {
	Tag     string   `json:"tag"`
	Text    *text    `json:"text,omitempty"`
	Fields  []field  `json:"fields,omitempty"`
	Actions []action `json:"actions,omitempty"`
}

func markdown(content string) element {
	return element{Tag: "div", Text: &text{Tag: "lark_md", Content: content}}
}

func divider() element {
	return element{Tag: "hr"}
}

var typeLabels = map[domain.ItemType]string{
	domain.TypePost:    "Post",
	domain.TypeComment: "Comment",
	domain.TypeSearch:  "Search hit",
}

func itemCard(item domain.Item) message {
	reason := "unknown"
	var reply string
	if item.Analysis != nil {
		if item.Analysis.Reason != "" {
			reason = item.Analysis.Reason
		}
		reply = item.Analysis.ReplyDraft
	}

	label, ok := typeLabels[item.Type]
	if !ok {
		label = typeLabels[domain.TypePost]
	}

	elements := []element{
		markdown(fmt.Sprintf("**%s title**\n%s", label, item.Title)),
		markdown("**Preview**\n" + contentPreview(item.Content)),
	}
	if item.SearchKeyword != "" {
		elements = append(elements, markdown("**Search keyword**: "+item.SearchKeyword))
	}
	elements = append(elements,
		divider(),
		markdown("**Why it matters**\n"+reason),
		markdown("**Suggested reply**\n```\n"+reply+"\n```"),
		divider(),
		element{Tag: "div", Fields: []field{
			{IsShort: true, Text: text{Tag: "lark_md", Content: "**Author**: u/" + authorName(item.Author)}},
			{IsShort: true, Text: text{Tag: "lark_md", Content: "**Community**: r/" + item.Subreddit}},
		}},
		element{Tag: "action", Actions: []action{{
			Tag:  "button",
			Text: text{Tag: "plain_text", Content: "Open on Reddit"},
			Type: "primary",
			URL:  item.Link,
		}}},
	)

	return message{
		MsgType: "interactive",
		Card: card{
			Config: &cardConfig{WideScreenMode: true},
			Header: header{
				Title:    text{Tag: "plain_text", Content: "Reddit lead - r/" + item.Subreddit},
				Template: "blue",
			},
			Elements: elements,
		},
	}
}

func summaryCard(summary domain.RunSummary) message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "• Scanned: **%d**\n", summary.Fetched)
	fmt.Fprintf(&sb, "• Relevant: **%d**\n", summary.Relevant)
	fmt.Fprintf(&sb, "• Delivered: **%d**", summary.Sent)

	var breakdown []string
	for _, t := range domain.ItemTypes {
		if summary.FetchedByType[t] == 0 {
			continue
		}
		breakdown = append(breakdown, fmt.Sprintf("%s %d/%d", t, summary.RelevantByType[t], summary.FetchedByType[t]))
	}

	elements := []element{markdown(sb.String())}
	if len(breakdown) > 0 {
		elements = append(elements, markdown("Relevant by type: "+strings.Join(breakdown, ", ")))
	}
	if summary.FailedBatches > 0 {
		elements = append(elements, markdown(fmt.Sprintf("Failed batches: **%d** of %d", summary.FailedBatches, summary.Batches)))
	}

	return message{
		MsgType: "interactive",
		Card: card{
			Header: header{
				Title:    text{Tag: "plain_text", Content: "Reddit monitor run summary"},
				Template: "green",
			},
			Elements: elements,
		},
	}
}

func contentPreview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewChars {
		return content
	}
	return string(runes[:previewChars]) + "..."
}

func authorName(author string) string {
	author = strings.TrimPrefix(strings.TrimSpace(author), "/")
	author = strings.TrimPrefix(author, "u/")
	if author == "" {
		return "unknown"
	}
	return author
}
