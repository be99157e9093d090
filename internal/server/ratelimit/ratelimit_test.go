package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketSpendsAndExhausts(t *testing.T) {
	b := newBucket(3, 0.001) // refill slow enough to be irrelevant here

	for i := 0; i < 3; i++ {
		allowed, _, _ := b.take()
		assert.True(t, allowed, "take %d", i)
	}
	allowed, remaining, reset := b.take()
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.True(t, reset.After(time.Now()))
}

func TestBucketRefills(t *testing.T) {
	b := newBucket(1, 50.0) // a token every 20ms

	allowed, _, _ := b.take()
	require.True(t, allowed)
	allowed, _, _ = b.take()
	require.False(t, allowed)

	time.Sleep(40 * time.Millisecond)
	allowed, _, _ = b.take()
	assert.True(t, allowed, "bucket should have refilled")
}

func TestBucketNeverExceedsCapacity(t *testing.T) {
	b := newBucket(2, 1000.0)
	time.Sleep(20 * time.Millisecond)

	// Even after ample refill time, only capacity tokens are spendable.
	for i := 0; i < 2; i++ {
		allowed, _, _ := b.take()
		assert.True(t, allowed, "take %d", i)
	}
	allowed, _, _ := b.take()
	assert.False(t, allowed)
}

func testConfig(endpoints ...EndpointConfig) *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    100,
		DefaultWindow:   time.Minute,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: endpoints,
	}
}

func TestLimiterEnforcesBurst(t *testing.T) {
	l := NewLimiter(testConfig(
		EndpointConfig{Path: "/run", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
	))
	defer l.Stop()

	for i := 0; i < 2; i++ {
		allowed, info := l.Allow("1.2.3.4", "/run", "POST")
		assert.True(t, allowed, "request %d", i)
		assert.Equal(t, 10, info.Limit)
	}

	allowed, info := l.Allow("1.2.3.4", "/run", "POST")
	assert.False(t, allowed)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
}

func TestLimiterIsolatesClients(t *testing.T) {
	l := NewLimiter(testConfig(
		EndpointConfig{Path: "/run", Method: "POST", Limit: 10, Window: time.Hour, Burst: 1},
	))
	defer l.Stop()

	allowed, _ := l.Allow("1.1.1.1", "/run", "POST")
	require.True(t, allowed)
	allowed, _ = l.Allow("1.1.1.1", "/run", "POST")
	require.False(t, allowed)

	// A different client has its own bucket.
	allowed, _ = l.Allow("2.2.2.2", "/run", "POST")
	assert.True(t, allowed)
}

func TestLimiterIsolatesEndpoints(t *testing.T) {
	l := NewLimiter(testConfig(
		EndpointConfig{Path: "/run", Method: "POST", Limit: 10, Window: time.Hour, Burst: 1},
	))
	defer l.Stop()

	allowed, _ := l.Allow("1.1.1.1", "/run", "POST")
	require.True(t, allowed)
	allowed, _ = l.Allow("1.1.1.1", "/run", "POST")
	require.False(t, allowed)

	// Draining /run must not touch the default-tier read endpoints.
	allowed, _ = l.Allow("1.1.1.1", "/postings", "GET")
	assert.True(t, allowed)
}

func TestLimiterWhitelistAndBlacklist(t *testing.T) {
	cfg := testConfig(
		EndpointConfig{Path: "/run", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1},
	)
	cfg.Whitelist["10.0.0.1"] = true
	cfg.Blacklist["10.0.0.2"] = true
	l := NewLimiter(cfg)
	defer l.Stop()

	for i := 0; i < 5; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/run", "POST")
		assert.True(t, allowed, "whitelisted request %d", i)
	}

	allowed, _ := l.Allow("10.0.0.2", "/postings", "GET")
	assert.False(t, allowed, "blacklisted client must never pass")
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer l.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("1.1.1.1", "/run", "POST")
		assert.True(t, allowed)
	}
}

func TestLimiterHealthUnmetered(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	for i := 0; i < 500; i++ {
		allowed, _ := l.Allow("1.1.1.1", "/health", "GET")
		require.True(t, allowed, "health probe %d", i)
	}
}

func TestLimiterDropsStaleBuckets(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	l.Allow("1.1.1.1", "/postings", "GET")
	require.Len(t, l.buckets, 1)

	// Age the bucket past the idle cutoff by hand.
	for _, b := range l.buckets {
		b.lastSeen = time.Now().Add(-2 * staleAfter)
	}
	l.dropStaleBuckets()
	assert.Empty(t, l.buckets)
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/run", Method: "POST", Limit: 10},
		{Path: "/postings/", Method: "DELETE", Limit: 100},
	}

	t.Run("exact", func(t *testing.T) {
		m := MatchEndpoint("/run", "POST", configs)
		require.NotNil(t, m)
		assert.Equal(t, 10, m.Limit)
	})

	t.Run("prefix", func(t *testing.T) {
		m := MatchEndpoint("/postings/42/bid", "DELETE", configs)
		require.NotNil(t, m)
		assert.Equal(t, 100, m.Limit)
	})

	t.Run("method mismatch", func(t *testing.T) {
		assert.Nil(t, MatchEndpoint("/run", "GET", configs))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Nil(t, MatchEndpoint("/bids", "GET", configs))
	})

	t.Run("health is unmetered", func(t *testing.T) {
		m := MatchEndpoint("/health", "GET", configs)
		require.NotNil(t, m)
		assert.Equal(t, 0, m.Limit)
	})
}

func TestLoadConfigDisabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg := LoadConfig()
	assert.False(t, cfg.Enabled)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "")
	t.Setenv("RATE_LIMIT_WHITELIST", "1.1.1.1, 2.2.2.2")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1000, cfg.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.DefaultWindow)
	assert.True(t, cfg.Whitelist["1.1.1.1"])
	assert.True(t, cfg.Whitelist["2.2.2.2"])
	assert.NotEmpty(t, cfg.EndpointConfigs)
}
