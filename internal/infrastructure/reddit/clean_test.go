package reddit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHTML(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "  ", want: ""},
		{name: "plain", in: "just   text\n here", want: "just text here"},
		{
			name: "reddit markup",
			in:   `<div class="md"><p>I can&#39;t code</p><p>any <a href="x">tips</a>?</p></div>`,
			want: "I can't code any tips ?",
		},
		{
			name: "drops script and style",
			in:   `<style>p{color:red}</style><p>visible</p><script>alert(1)</script>`,
			want: "visible",
		},
		{name: "table cells", in: `<table><tr><td>a</td><td>b</td></tr></table>`, want: "a b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CleanHTML(tc.in))
		})
	}
}
