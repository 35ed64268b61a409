package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RedditMonitor/internal/domain"
)

func TestNotifyItemPostsForm(t *testing.T) {
	t.Parallel()

	forms := make(chan map[string]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		forms <- map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier(server.URL, "TOKEN", "42", time.Second)
	item := domain.Item{
		Type:      domain.TypePost,
		Title:     "make_game *fast*",
		Subreddit: "gamedev",
		Link:      "https://www.reddit.com/r/gamedev/comments/abc/",
		Analysis:  &domain.Analysis{IsRelevant: true, Reason: "beginner", ReplyDraft: "try it"},
	}
	require.NoError(t, n.NotifyItem(context.Background(), item))

	form := <-forms
	assert.Equal(t, "42", form["chat_id"])
	assert.Equal(t, "Markdown", form["parse_mode"])
	assert.Contains(t, form["text"], `[make\_game \*fast\*](https://www.reddit.com/r/gamedev/comments/abc/)`)
	assert.Contains(t, form["text"], "try it")
}

func TestNotifySummaryAndErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewNotifier(server.URL, "TOKEN", "42", time.Second).NotifySummary(context.Background(), domain.RunSummary{Relevant: 1})
	assert.ErrorContains(t, err, "403")

	err = NewNotifier(server.URL, "", "", time.Second).NotifySummary(context.Background(), domain.RunSummary{})
	assert.ErrorContains(t, err, "misconfigured")
}

func TestFormatSummary(t *testing.T) {
	t.Parallel()

	text := formatSummary(domain.RunSummary{Fetched: 12, Relevant: 2, Sent: 2})
	assert.Equal(t, "*Reddit monitor run*\nScanned: 12\nRelevant: 2\nDelivered: 2", text)
}
