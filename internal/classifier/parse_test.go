package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RedditMonitor/internal/domain"
)

func TestParseResults(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want []domain.ClassificationResult
		ok   bool
	}{
		{
			name: "strict array",
			text: `[{"index":0,"is_relevant":true,"reason":"needs help","reply_draft":"try it"},{"index":1,"is_relevant":false,"reason":"","reply_draft":""}]`,
			want: []domain.ClassificationResult{
				{Index: 0, IsRelevant: true, Reason: "needs help", ReplyDraft: "try it"},
				{Index: 1},
			},
			ok: true,
		},
		{
			name: "json fence",
			text: "```json\n[{\"index\":2,\"is_relevant\":true}]\n```",
			want: []domain.ClassificationResult{{Index: 2, IsRelevant: true}},
			ok:   true,
		},
		{
			name: "bare fence",
			text: "```\n[]\n```",
			want: []domain.ClassificationResult{},
			ok:   true,
		},
		{
			name: "prose around array",
			text: `Sure! Here you go: [{"index":0,"is_relevant":true,"reason":"uses [brackets] inside"}] hope that helps`,
			want: []domain.ClassificationResult{{Index: 0, IsRelevant: true, Reason: "uses [brackets] inside"}},
			ok:   true,
		},
		{
			name: "skips non-json bracket before array",
			text: `[note] result: [{"index":1,"is_relevant":false}]`,
			want: []domain.ClassificationResult{{Index: 1}},
			ok:   true,
		},
		{
			name: "single object",
			text: `{"is_relevant": true, "reason": "beginner", "reply_draft": "hey"}`,
			want: []domain.ClassificationResult{{Index: 0, IsRelevant: true, Reason: "beginner", ReplyDraft: "hey"}},
			ok:   true,
		},
		{
			name: "single object in prose",
			text: `Result: {"is_relevant": false, "reason": "spam"} end`,
			want: []domain.ClassificationResult{{Index: 0, Reason: "spam"}},
			ok:   true,
		},
		{
			name: "missing index and bad element",
			text: `[{"is_relevant":true}, "oops", {"index":"x"}, {"index":3,"is_relevant":true}]`,
			want: []domain.ClassificationResult{{Index: -1, IsRelevant: true}, {Index: 3, IsRelevant: true}},
			ok:   true,
		},
		{
			name: "bracketed prose before array",
			text: "Item [0] looks relevant:\n[{\"index\":0,\"is_relevant\":true,\"reason\":\"asks for tools\"}]",
			want: []domain.ClassificationResult{{Index: 0, IsRelevant: true, Reason: "asks for tools"}},
			ok:   true,
		},
		{
			name: "backticks inside reply draft",
			text: "```json\n[{\"index\":0,\"is_relevant\":true,\"reply_draft\":\"use ```go fmt``` first\"}]\n```",
			want: []domain.ClassificationResult{{Index: 0, IsRelevant: true, ReplyDraft: "use ```go fmt``` first"}},
			ok:   true,
		},
		{
			name: "fenced block after prose",
			text: "Here is the result:\n```json\n[{\"index\":1,\"is_relevant\":true}]\n```",
			want: []domain.ClassificationResult{{Index: 1, IsRelevant: true}},
			ok:   true,
		},
		{name: "only numeric brackets", text: "See items [0] and [1, 2].", ok: false},
		{name: "empty", text: "   ", ok: false},
		{name: "prose only", text: "I cannot help with that.", ok: false},
		{name: "truncated array", text: `[{"index":0,"is_relevant":tr`, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseResults(tc.text)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBalancedSpanIgnoresBracketsInStrings(t *testing.T) {
	t.Parallel()

	text := `x [1, "]\"[", [2]] y`
	span, ok := balancedSpan(text, 2, '[', ']')
	require.True(t, ok)
	assert.Equal(t, `[1, "]\"[", [2]]`, span)

	_, ok = balancedSpan(`[1, 2`, 0, '[', ']')
	assert.False(t, ok)
}
