package feishu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RedditMonitor/internal/domain"
)

func leadItem() domain.Item {
	return domain.Item{
		ID:        "t3_abc",
		Type:      domain.TypeComment,
		Title:     "Re: Best tools for beginners?",
		Content:   strings.Repeat("x", 350),
		Subreddit: "gamedev",
		Link:      "https://www.reddit.com/r/gamedev/comments/abc/",
		Author:    "/u/alice",
		Analysis:  &domain.Analysis{IsRelevant: true, Reason: "beginner", ReplyDraft: "been there"},
	}
}

func captureServer(t *testing.T, response string, bodies chan<- []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if bodies != nil {
			bodies <- body
		}
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNotifyItemSendsCard(t *testing.T) {
	t.Parallel()

	bodies := make(chan []byte, 1)
	server := captureServer(t, `{"code":0,"msg":"success"}`, bodies)

	n := NewNotifier(server.URL, time.Second)
	require.NoError(t, n.NotifyItem(context.Background(), leadItem()))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(<-bodies, &sent))
	assert.Equal(t, "interactive", sent["msg_type"])

	raw, err := json.Marshal(sent["card"])
	require.NoError(t, err)
	cardJSON := string(raw)
	assert.Contains(t, cardJSON, "r/gamedev")
	assert.Contains(t, cardJSON, "u/alice")
	assert.NotContains(t, cardJSON, "u//u/alice")
	assert.Contains(t, cardJSON, "been there")
	assert.Contains(t, cardJSON, "Comment title")
	assert.Contains(t, cardJSON, strings.Repeat("x", 300)+"...")
	assert.NotContains(t, cardJSON, strings.Repeat("x", 301))
	assert.Contains(t, cardJSON, "https://www.reddit.com/r/gamedev/comments/abc/")
}

func TestNotifyAcceptsLegacyStatusCode(t *testing.T) {
	t.Parallel()

	server := captureServer(t, `{"StatusCode":0,"StatusMessage":"success"}`, nil)
	assert.NoError(t, NewNotifier(server.URL, time.Second).NotifyItem(context.Background(), leadItem()))
}

func TestNotifyRejected(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"error code":   `{"code":19021,"msg":"sign match fail"}`,
		"no code":      `{}`,
		"not json":     `<html>bad gateway</html>`,
		"status error": `{"StatusCode":1}`,
	}
	for name, response := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			server := captureServer(t, response, nil)
			assert.Error(t, NewNotifier(server.URL, time.Second).NotifyItem(context.Background(), leadItem()))
		})
	}
}

func TestNotifyMisconfigured(t *testing.T) {
	t.Parallel()

	assert.ErrorContains(t, NewNotifier("", 0).NotifyItem(context.Background(), leadItem()), "misconfigured")
}

func TestNotifySummary(t *testing.T) {
	t.Parallel()

	bodies := make(chan []byte, 1)
	server := captureServer(t, `{"code":0}`, bodies)

	summary := domain.RunSummary{
		Fetched:        12,
		Relevant:       2,
		Sent:           2,
		Batches:        2,
		FailedBatches:  1,
		FetchedByType:  domain.TypeCounts{domain.TypePost: 10, domain.TypeSearch: 2},
		RelevantByType: domain.TypeCounts{domain.TypePost: 2},
	}
	require.NoError(t, NewNotifier(server.URL, time.Second).NotifySummary(context.Background(), summary))

	body := string(<-bodies)
	assert.Contains(t, body, "Scanned: **12**")
	assert.Contains(t, body, "Relevant: **2**")
	assert.Contains(t, body, "post 2/10, search 0/2")
	assert.NotContains(t, body, "comment")
	assert.Contains(t, body, "Failed batches: **1** of 2")
}

func TestAuthorName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "alice", authorName("/u/alice"))
	assert.Equal(t, "bob", authorName("u/bob"))
	assert.Equal(t, "carol", authorName("carol"))
	assert.Equal(t, "unknown", authorName(" "))
}
