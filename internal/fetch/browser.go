package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// minStaticTextLen is the extracted-text length below which a page is
// assumed to be a client-side render that plain HTTP cannot see.
const minStaticTextLen = 500

// looksScriptRendered reports whether an extraction result is too short
// to be a real posting description.
func looksScriptRendered(extracted string) bool {
	return len(strings.TrimSpace(extracted)) < minStaticTextLen
}

// Renderer drives a headless Chrome to render script-heavy posting pages.
// Requires Chrome or Chromium on the system.
type Renderer struct {
	timeout time.Duration
	verbose bool
}

// NewRenderer creates a Renderer. A zero timeout uses DefaultTimeout.
func NewRenderer(timeout time.Duration, verbose bool) *Renderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Renderer{timeout: timeout, verbose: verbose}
}

// Render loads the URL in a headless browser and returns the rendered
// HTML once the page's text content has settled.
func (r *Renderer) Render(ctx context.Context, url string) (string, error) {
	if r.verbose {
		log.Printf("[BROWSER] rendering %s", url)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(dismissBanners),
		chromedp.ActionFunc(waitForStableText),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	if r.verbose {
		log.Printf("[BROWSER] rendered %d bytes", len(html))
	}
	return html, nil
}

// dismissBanners clicks common cookie-consent buttons. Not finding one is
// not an error.
func dismissBanners(ctx context.Context) error {
	_ = chromedp.Click(`button[id*="accept"], button[class*="accept"]`, chromedp.NodeVisible).Do(ctx)
	return nil
}

// waitForStableText polls the body text until it stops growing, so slow
// client-side routers get a chance to finish without a long fixed sleep.
// Gives up after a few rounds and lets extraction work with whatever
// rendered.
func waitForStableText(ctx context.Context) error {
	prev := -1
	for i := 0; i < 8; i++ {
		var length int
		if err := chromedp.Evaluate(`document.body.innerText.length`, &length).Do(ctx); err != nil {
			return err
		}
		if length >= minStaticTextLen && length == prev {
			return nil
		}
		prev = length

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil
}
