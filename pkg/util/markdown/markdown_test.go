package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFormatsMarkdown(t *testing.T) {
	r := NewRenderer()
	out := string(r.Render("**printer** is broken\n\n- step one"))
	assert.Contains(t, out, "<strong>printer</strong>")
	assert.Contains(t, out, "<li>step one</li>")
}

func TestRenderStripsScripts(t *testing.T) {
	r := NewRenderer()
	out := string(r.Render("hello <script>alert(1)</script> [x](javascript:alert(1))"))
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
}

func TestSanitizeAddsNoFollow(t *testing.T) {
	r := NewRenderer()
	raw, err := r.ToHTML("see https://example.com")
	require.NoError(t, err)
	out := r.Sanitize(raw)
	assert.True(t, strings.Contains(out, `rel="nofollow"`), out)
}
