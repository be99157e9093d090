// Package currency provides USD conversion rates for marketplace budgets.
//
// Rates are stored as the USD value of one unit of the currency: if 1 USD
// buys 83 INR, the INR rate is 1/83. A small static table covers
// low-liquidity currencies the live source omits. A currency found in
// neither source is reported as unknown; callers must treat unknown as
// "cannot price this posting" rather than assuming USD parity.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrUnknownCurrency is returned when neither the live table nor the static
// fallback table knows the requested currency code.
var ErrUnknownCurrency = errors.New("unknown currency")

const (
	defaultAPIURL = "https://api.frankfurter.app/latest"
	cacheTTL      = 24 * time.Hour
)

// DefaultCachePath is where the CLI persists fetched rates between runs
const DefaultCachePath = ".bid-pilot-rates.json"

// fallbackRates covers currencies the live source does not quote.
// Values are USD per one unit.
var fallbackRates = map[string]float64{
	"INR": 0.012,
	"IDR": 0.000064,
	"VND": 0.000041,
}

// symbol and two-letter country aliases seen in marketplace payloads
var currencyAliases = map[string]string{
	"US": "USD", "EU": "EUR", "GB": "GBP", "CA": "CAD", "AU": "AUD",
	"SG": "SGD", "NZ": "NZD", "HK": "HKD", "JP": "JPY", "CN": "CNY",
	"MY": "MYR", "PH": "PHP", "TH": "THB", "IN": "INR",
	"$": "USD", "€": "EUR", "£": "GBP", "₹": "INR", "¥": "JPY",
	"₱": "PHP", "฿": "THB", "₩": "KRW", "R$": "BRL", "₽": "RUB",
}

// cacheFile is the on-disk representation of the rate table
type cacheFile struct {
	Rates       map[string]float64 `json:"rates"`
	LastUpdated time.Time          `json:"last_updated"`
}

// Converter resolves currency codes to USD rates with a 24-hour file cache
// over the live source and a static fallback table.
type Converter struct {
	apiURL    string
	cachePath string
	client    *http.Client

	mu          sync.Mutex
	rates       map[string]float64
	lastUpdated time.Time
}

// Option configures a Converter
type Option func(*Converter)

// WithAPIURL overrides the live rate endpoint (used in tests)
func WithAPIURL(u string) Option {
	return func(c *Converter) { c.apiURL = u }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Converter) { c.client = hc }
}

// NewConverter creates a converter that caches rates at cachePath.
// An empty cachePath disables persistence.
func NewConverter(cachePath string, opts ...Option) *Converter {
	c := &Converter{
		apiURL:    defaultAPIURL,
		cachePath: cachePath,
		client:    &http.Client{Timeout: 10 * time.Second},
		rates:     map[string]float64{"USD": 1.0},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loadCache()
	return c
}

// NormalizeCode maps marketplace currency identifiers (symbols, two-letter
// country codes, lowercase) to a three-letter ISO code. Empty input maps to
// USD since the marketplace omits the code on USD-denominated postings.
// Identifiers outside the alias table are returned as-is so Rate surfaces
// ErrUnknownCurrency instead of silently assuming dollar parity.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "USD"
	}
	if iso, ok := currencyAliases[code]; ok {
		return iso
	}
	return code
}

// Rate returns the USD value of one unit of the given currency. The code is
// normalized first. When the cached table is stale or missing the code, a
// live refresh is attempted; refresh failures fall through to the cached and
// static tables. ErrUnknownCurrency is returned when no source has the code.
func (c *Converter) Rate(ctx context.Context, code string) (float64, error) {
	iso := NormalizeCode(code)
	if iso == "USD" {
		return 1.0, nil
	}

	c.mu.Lock()
	_, known := c.rates[iso]
	stale := time.Since(c.lastUpdated) >= cacheTTL
	c.mu.Unlock()

	if stale || !known {
		if err := c.refresh(ctx); err != nil {
			// Keep serving cached/fallback rates when the live source
			// is unreachable.
			_ = err
		}
	}

	c.mu.Lock()
	rate, ok := c.rates[iso]
	c.mu.Unlock()
	if ok {
		return rate, nil
	}
	if rate, ok := fallbackRates[iso]; ok {
		return rate, nil
	}
	return 0, fmt.Errorf("no rate for %s: %w", iso, ErrUnknownCurrency)
}

// ToUSD converts an amount in the given currency to USD
func (c *Converter) ToUSD(ctx context.Context, amount float64, code string) (float64, error) {
	rate, err := c.Rate(ctx, code)
	if err != nil {
		return 0, err
	}
	return amount * rate, nil
}

// refresh fetches the latest rate table from the live source and persists it
func (c *Converter) refresh(ctx context.Context) error {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return fmt.Errorf("invalid rate API URL: %w", err)
	}
	q := u.Query()
	q.Set("from", "USD")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rate API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode rate response: %w", err)
	}

	// The source quotes 1 USD = X units; invert to get USD per unit.
	newRates := map[string]float64{"USD": 1.0}
	for code, rate := range payload.Rates {
		if rate > 0 {
			newRates[code] = 1.0 / rate
		}
	}

	c.mu.Lock()
	c.rates = newRates
	c.lastUpdated = time.Now()
	c.mu.Unlock()

	c.saveCache()
	return nil
}

// loadCache restores the rate table from disk, best effort
func (c *Converter) loadCache() {
	if c.cachePath == "" {
		return
	}
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return
	}
	var cached cacheFile
	if err := json.Unmarshal(data, &cached); err != nil {
		return
	}
	if cached.Rates != nil {
		c.rates = cached.Rates
		c.lastUpdated = cached.LastUpdated
	}
}

// saveCache persists the rate table to disk, best effort
func (c *Converter) saveCache() {
	if c.cachePath == "" {
		return
	}
	c.mu.Lock()
	cached := cacheFile{Rates: c.rates, LastUpdated: c.lastUpdated}
	c.mu.Unlock()

	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return
	}
	if dir := filepath.Dir(c.cachePath); dir != "" && dir != "." {
		_ = os.MkdirAll(dir, 0755)
	}
	_ = os.WriteFile(c.cachePath, data, 0644)
}
