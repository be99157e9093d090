package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty defaults to USD", "", "USD"},
		{"iso code passes through", "EUR", "EUR"},
		{"lowercase normalized", "gbp", "GBP"},
		{"two-letter country", "IN", "INR"},
		{"dollar symbol", "$", "USD"},
		{"rupee symbol", "₹", "INR"},
		{"unknown two-letter code is preserved", "BD", "BD"},
		{"garbage is preserved for Rate to reject", "12#", "12#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCode(tt.input))
		})
	}
}

func TestRate_USDAlwaysOne(t *testing.T) {
	c := NewConverter("")
	rate, err := c.Rate(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
}

func TestRate_LiveSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// 1 USD = 0.92 EUR
		_, _ = w.Write([]byte(`{"rates":{"EUR":0.92}}`))
	}))
	defer srv.Close()

	c := NewConverter("", WithAPIURL(srv.URL))
	rate, err := c.Rate(context.Background(), "EUR")
	require.NoError(t, err)
	assert.InDelta(t, 1.0/0.92, rate, 1e-9)
}

func TestRate_FallbackTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{}}`))
	}))
	defer srv.Close()

	c := NewConverter("", WithAPIURL(srv.URL))
	rate, err := c.Rate(context.Background(), "IDR")
	require.NoError(t, err)
	assert.InDelta(t, 0.000064, rate, 1e-9)
}

func TestRate_UnknownCurrency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{}}`))
	}))
	defer srv.Close()

	c := NewConverter("", WithAPIURL(srv.URL))
	for _, code := range []string{"XYZ", "AE"} {
		_, err := c.Rate(context.Background(), code)
		require.Error(t, err, code)
		assert.ErrorIs(t, err, ErrUnknownCurrency, code)
	}
}

func TestRate_LiveSourceDownFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewConverter("", WithAPIURL(srv.URL))
	rate, err := c.Rate(context.Background(), "VND")
	require.NoError(t, err)
	assert.InDelta(t, 0.000041, rate, 1e-9)
}

func TestConverter_CachePersistence(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "rates.json")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"GBP":0.80}}`))
	}))
	defer srv.Close()

	c1 := NewConverter(cachePath, WithAPIURL(srv.URL))
	_, err := c1.Rate(context.Background(), "GBP")
	require.NoError(t, err)

	// A fresh converter pointed at a dead server should serve from cache.
	srv.Close()
	c2 := NewConverter(cachePath, WithAPIURL(srv.URL))
	rate, err := c2.Rate(context.Background(), "GBP")
	require.NoError(t, err)
	assert.InDelta(t, 1.0/0.80, rate, 1e-9)
}

func TestToUSD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"EUR":0.5}}`))
	}))
	defer srv.Close()

	c := NewConverter("", WithAPIURL(srv.URL))
	usd, err := c.ToUSD(context.Background(), 100, "EUR")
	require.NoError(t, err)
	assert.InDelta(t, 200.0, usd, 1e-9)
}
