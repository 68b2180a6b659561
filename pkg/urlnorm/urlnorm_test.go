package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLowercasesHostAndStripsFragment(t *testing.T) {
	out, err := Normalize("https://Example.COM/Path#section-2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/Path", out)
}

func TestNormalizeStripsTrailingSlashExceptRoot(t *testing.T) {
	out, err := Normalize("https://example.com/blog/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/blog", out)

	root, err := Normalize("https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", root)
}

func TestNormalizeStripsTrackingParams(t *testing.T) {
	out, err := Normalize("https://example.com/p?utm_source=x&utm_campaign=y&gclid=z&keep=1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/p?keep=1", out)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first, err := Normalize("https://Example.com/a/?utm_source=x#frag")
	require.NoError(t, err)
	second, err := Normalize(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSameOrigin(t *testing.T) {
	assert.True(t, SameOrigin("example.com", "example.com", false))
	assert.False(t, SameOrigin("example.com", "blog.example.com", false))
	assert.True(t, SameOrigin("example.com", "blog.example.com", true))
	assert.False(t, SameOrigin("example.com", "other.com", true))
}

func TestHasSkippedExtension(t *testing.T) {
	assert.True(t, HasSkippedExtension("https://example.com/a/image.PNG"))
	assert.True(t, HasSkippedExtension("https://example.com/doc.pdf"))
	assert.False(t, HasSkippedExtension("https://example.com/page"))
	assert.False(t, HasSkippedExtension("https://example.com/page.html"))
}
