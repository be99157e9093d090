package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGet(t *testing.T) {
	var gotUA, gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotHeader = r.Header.Get("X-Custom")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Test</h1></body></html>"))
	}))
	defer server.Close()

	client := NewClient().WithHeader("X-Custom", "abc")
	page, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, page.URL)
	assert.Contains(t, page.HTML, "<h1>Test</h1>")
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "text/html", page.ContentType)
	assert.Contains(t, gotUA, "BidPilot")
	assert.Equal(t, "abc", gotHeader)
}

func TestClientGetInvalidURL(t *testing.T) {
	for _, raw := range []string{"not-a-valid-url", "://bad", ""} {
		_, err := NewClient().Get(context.Background(), raw)
		require.Error(t, err, raw)

		var pageErr *PageError
		assert.ErrorAs(t, err, &pageErr)
		assert.Contains(t, err.Error(), "invalid URL")
	}
}

func TestClientGetHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("gone"))
	}))
	defer server.Close()

	page, err := NewClient().Get(context.Background(), server.URL)
	require.Error(t, err)

	// The error page body is still returned for inspection.
	require.NotNil(t, page)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
	assert.Contains(t, page.HTML, "gone")

	var pageErr *PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, http.StatusNotFound, pageErr.Status)
	assert.Contains(t, err.Error(), "404")
}

func TestExtractMainTextStripsChrome(t *testing.T) {
	html := `
	<html>
		<body>
			<nav>Navigation</nav>
			<main>
				<h1>Main Content</h1>
				<p>This is the important text.</p>
			</main>
			<footer>Footer</footer>
		</body>
	</html>`

	text, err := ExtractMainText(html, []string{"main"})
	require.NoError(t, err)
	assert.Contains(t, text, "Main Content")
	assert.Contains(t, text, "important text")
	assert.NotContains(t, text, "Navigation")
	assert.NotContains(t, text, "Footer")
}

func TestExtractMainTextPrefersLongestMatch(t *testing.T) {
	// Both selectors match; the description is longer than the teaser
	// that happens to match the generic selector first.
	html := `
	<html>
		<body>
			<div class="content">Teaser</div>
			<div class="project-description">
				<h2>Requirements</h2>
				<p>Scrape product listings nightly into a clean dataset with alerts.</p>
			</div>
		</body>
	</html>`

	text, err := ExtractMainText(html, []string{".content", ".project-description"})
	require.NoError(t, err)
	assert.Contains(t, text, "product listings")
	assert.NotContains(t, text, "Teaser")
}

func TestExtractMainTextFallbackToBody(t *testing.T) {
	html := `<html><body><div>Some content here.</div></body></html>`

	text, err := ExtractMainText(html, PostingSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "Some content here")
}

func TestExtractMainTextNoiseSelectors(t *testing.T) {
	html := `
	<html>
		<body>
			<div class="content">
				<p>Project description text.</p>
				<div class="bid-form">Place your bid here</div>
			</div>
		</body>
	</html>`

	text, err := ExtractMainText(html, []string{".content"}, ".bid-form")
	require.NoError(t, err)
	assert.Contains(t, text, "Project description")
	assert.NotContains(t, text, "Place your bid")
}

func TestFlattenText(t *testing.T) {
	in := "  A   line  with   gaps  \n\n\n  second line \n\t\n"
	assert.Equal(t, "A line with gaps\nsecond line", flattenText(in))
}
