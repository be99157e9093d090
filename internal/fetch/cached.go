package fetch

import (
	"context"
	"sync"
	"time"
)

// DefaultPageCacheTTL is how long a fetched posting page stays fresh.
// Posting descriptions rarely change; bid counts come from the API instead.
const DefaultPageCacheTTL = 24 * time.Hour

// PageFetcher retrieves posting pages, extracts their main text, and caches
// results for the lifetime of the process.
type PageFetcher struct {
	client   *Client
	renderer *Renderer
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

type cacheEntry struct {
	page      *Page
	fetchedAt time.Time
}

// PageFetcherConfig holds configuration for the page fetcher.
type PageFetcherConfig struct {
	CacheTTL   time.Duration
	UseBrowser bool
	Verbose    bool
	Client     *Client
}

// NewPageFetcher creates a new page fetcher. UseBrowser enables a
// headless-browser fallback for pages that render their content
// client-side.
func NewPageFetcher(config *PageFetcherConfig) *PageFetcher {
	if config == nil {
		config = &PageFetcherConfig{}
	}
	client := config.Client
	if client == nil {
		client = NewClient()
	}
	ttl := config.CacheTTL
	if ttl == 0 {
		ttl = DefaultPageCacheTTL
	}

	f := &PageFetcher{
		client:   client,
		cacheTTL: ttl,
		cache:    make(map[string]cacheEntry),
		now:      time.Now,
	}
	if config.UseBrowser {
		f.renderer = NewRenderer(client.timeout(), config.Verbose)
	}
	return f
}

// CachedResult extends Page with cache metadata.
type CachedResult struct {
	*Page
	FromCache bool
}

// FetchPosting retrieves a posting page, using the cache when fresh. Text is
// extracted with selectors for the detected marketplace; when the page looks
// JavaScript-rendered and a renderer is configured, the browser render is
// used instead if it yields more text.
func (f *PageFetcher) FetchPosting(ctx context.Context, urlStr string) (*CachedResult, error) {
	f.mu.Lock()
	entry, ok := f.cache[urlStr]
	f.mu.Unlock()
	if ok && f.now().Sub(entry.fetchedAt) < f.cacheTTL {
		return &CachedResult{Page: entry.page, FromCache: true}, nil
	}

	page, err := f.client.Get(ctx, urlStr)
	if err != nil {
		return nil, err
	}

	platform := DetectPlatform(urlStr)
	content := PlatformContentSelectors(platform)
	noise := PlatformNoiseSelectors(platform)

	text, err := ExtractMainText(page.HTML, content, noise...)
	if err != nil {
		return nil, err
	}

	if looksScriptRendered(text) && f.renderer != nil {
		if html, renderErr := f.renderer.Render(ctx, urlStr); renderErr == nil {
			rendered, extractErr := ExtractMainText(html, content, noise...)
			if extractErr == nil && len(rendered) > len(text) {
				page.HTML = html
				text = rendered
			}
		}
		// A failed render keeps the plain-HTTP text
	}
	page.Text = text

	f.mu.Lock()
	f.cache[urlStr] = cacheEntry{page: page, fetchedAt: f.now()}
	f.mu.Unlock()

	return &CachedResult{Page: page, FromCache: false}, nil
}

// InvalidateCache drops a cached page, forcing a re-fetch on next request.
func (f *PageFetcher) InvalidateCache(urlStr string) {
	f.mu.Lock()
	delete(f.cache, urlStr)
	f.mu.Unlock()
}
