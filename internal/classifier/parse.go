package classifier

import (
	"encoding/json"
	"regexp"
	"strings"

	"RedditMonitor/internal/domain"
)

var (
	openFenceExpr  = regexp.MustCompile("(?i)^```(?:json)?[ \t]*")
	closeFenceExpr = regexp.MustCompile("[ \t]*```$")
)

type rawResult struct {
	Index      *int   `json:"index"`
	IsRelevant bool   `json:"is_relevant"`
	Reason     string `json:"reason"`
	ReplyDraft string `json:"reply_draft"`
}

// ParseResults decodes a model reply. It strips a surrounding code fence and
// tries a strict parse first, then the first balanced [...] span holding at
// least one result object. A lone object is accepted as the answer for index 0.
// Entries without an index come back as -1.
func ParseResults(text string) ([]domain.ClassificationResult, bool) {
	text = stripFence(text)
	if text == "" {
		return nil, false
	}

	if results, ok := decodeArray(text); ok {
		return results, true
	}
	if result, ok := decodeObject(text); ok {
		return []domain.ClassificationResult{result}, true
	}

	for start := strings.IndexByte(text, '['); start >= 0; {
		if span, ok := balancedSpan(text, start, '[', ']'); ok {
			if results, ok := decodeArray(span); ok && len(results) > 0 {
				return results, true
			}
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}

	for start := strings.IndexByte(text, '{'); start >= 0; {
		if span, ok := balancedSpan(text, start, '{', '}'); ok && strings.Contains(span, `"is_relevant"`) {
			if result, ok := decodeObject(span); ok {
				return []domain.ClassificationResult{result}, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return nil, false
}

// stripFence removes a code fence wrapping the whole reply. Backticks inside
// the payload are left alone.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	text = openFenceExpr.ReplaceAllString(text, "")
	text = closeFenceExpr.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func decodeArray(text string) ([]domain.ClassificationResult, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		return nil, false
	}

	results := make([]domain.ClassificationResult, 0, len(elems))
	for _, elem := range elems {
		var raw rawResult
		if err := json.Unmarshal(elem, &raw); err != nil {
			continue
		}
		index := -1
		if raw.Index != nil {
			index = *raw.Index
		}
		results = append(results, toResult(index, raw))
	}
	return results, true
}

func decodeObject(text string) (domain.ClassificationResult, bool) {
	var raw rawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.ClassificationResult{}, false
	}
	index := 0
	if raw.Index != nil {
		index = *raw.Index
	}
	return toResult(index, raw), true
}

func toResult(index int, raw rawResult) domain.ClassificationResult {
	return domain.ClassificationResult{
		Index:      index,
		IsRelevant: raw.IsRelevant,
		Reason:     raw.Reason,
		ReplyDraft: raw.ReplyDraft,
	}
}

// balancedSpan returns text[start:end+1] where end closes the bracket opened at
// start, ignoring brackets inside JSON strings.
func balancedSpan(text string, start int, openCh, closeCh byte) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
