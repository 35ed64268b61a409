package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RedditMonitor/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) ([]domain.Item, error) { return nil, nil }

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubScanner{name: "posts"})
	reg.Register(stubScanner{name: "comments"})

	got, err := reg.Resolve("posts")
	require.NoError(t, err)
	assert.Equal(t, "posts", got.Name())

	_, err = reg.Resolve("search")
	assert.Error(t, err)

	assert.Equal(t, []string{"comments", "posts"}, reg.Names())
}

func TestZeroRegistryRegister(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(stubScanner{name: "posts"})
	_, err := reg.Resolve("posts")
	assert.NoError(t, err)
}
