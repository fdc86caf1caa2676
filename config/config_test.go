package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/flightdealworker/pkg/errors"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "https://www.tustus.co.il/Arkia/Home", config.TustusURL)
	assert.Equal(t, 30*time.Minute, config.CheckInterval)
	assert.Equal(t, 24*time.Hour, config.MaxFlightAge)
	assert.Equal(t, 0, config.MinDaysAdvance)
	assert.Equal(t, 365, config.MaxDaysAdvance)
	assert.Equal(t, 50, config.PriceDropThreshold)
	assert.True(t, config.RequirePrice)
	assert.Equal(t, 100, config.ExtractMinPrice)
	assert.Equal(t, 3000, config.ExtractMaxPrice)
	assert.False(t, config.RequireAllowlist)
	assert.False(t, config.IgnorePriceChanges)
	assert.Equal(t, PersistNotifyFirst, config.PersistPolicy)
	assert.Equal(t, "flights_data.json", config.DataFile)
	assert.Equal(t, "smtp.gmail.com", config.Email.SMTPServer)
	assert.Equal(t, 587, config.Email.SMTPPort)
	assert.Empty(t, config.RedisAddr)
	assert.Empty(t, config.MemcacheAddr)
	assert.Contains(t, config.KnownDestinations, "ברלין")
	assert.Equal(t, "Asia/Jerusalem", config.Location.String())
	assert.NoError(t, config.Validate())

	// Test with environment variables
	t.Setenv("TUSTUS_URL", "https://example.com/deals")
	t.Setenv("CHECK_INTERVAL_MINUTES", "15")
	t.Setenv("EXCLUDED_DESTINATIONS", "נפאל, הודו")
	t.Setenv("MAILING_LIST", "a@example.com,b@example.com")
	t.Setenv("IGNORE_PRICE_CHANGES", "true")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("MEMCACHE_ADDR", "memcache.example.com:11211")

	config = LoadConfig()
	assert.Equal(t, "https://example.com/deals", config.TustusURL)
	assert.Equal(t, 15*time.Minute, config.CheckInterval)
	assert.Equal(t, []string{"נפאל", "הודו"}, config.ExcludedDestinations)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, config.Email.MailingList)
	assert.True(t, config.IgnorePriceChanges)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, "memcache.example.com:11211", config.MemcacheAddr)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
check_interval_minutes: 10
allowed_destinations:
  - ברלין
  - רומא
require_allowlist: true
persist_policy: persist-first
max_price: 2000
`), 0o600))

	// environment wins over the file
	t.Setenv("MAX_PRICE", "1500")

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, config.CheckInterval)
	assert.Equal(t, []string{"ברלין", "רומא"}, config.AllowedDestinations)
	assert.True(t, config.RequireAllowlist)
	assert.Equal(t, PersistPersistFirst, config.PersistPolicy)
	assert.Equal(t, 1500, config.MaxPrice)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("check_interval_minutes: [unclosed"), 0o600))
	_, err = Load(bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))

	t.Setenv("CHECK_INTERVAL_MINUTES", "soon")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECK_INTERVAL_MINUTES")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.CheckInterval = 0 }},
		{"unknown policy", func(c *Config) { c.PersistPolicy = "sometimes" }},
		{"inverted window", func(c *Config) { c.MinDaysAdvance, c.MaxDaysAdvance = 30, 7 }},
		{"negative threshold", func(c *Config) { c.PriceDropThreshold = -1 }},
		{"empty allowlist required", func(c *Config) { c.RequireAllowlist = true }},
		{"no data file", func(c *Config) { c.DataFile = "" }},
		{"inverted price range", func(c *Config) { c.ExtractMinPrice, c.ExtractMaxPrice = 500, 200 }},
		{"negative price floor", func(c *Config) { c.ExtractMinPrice = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := LoadConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
		})
	}
}

func TestRecognisedDestinations(t *testing.T) {
	config := &Config{
		KnownDestinations:    []string{"ברלין", "רומא"},
		AllowedDestinations:  []string{"רומא", "טוקיו"},
		ExcludedDestinations: []string{"קטמנדו", "ברלין"},
	}

	assert.Equal(t, []string{"ברלין", "רומא", "טוקיו", "קטמנדו"}, config.RecognisedDestinations())
}

func TestFilterConfig(t *testing.T) {
	config := LoadConfig()
	config.ExcludedDestinations = []string{"קטמנדו"}
	config.MaxPrice = 2000

	fc := config.FilterConfig()
	assert.Contains(t, fc.Denylist, "קטמנדו")
	assert.Empty(t, fc.Allowlist)
	assert.Equal(t, 24*time.Hour, fc.MaxAge)
	assert.Equal(t, 2000, fc.MaxPrice)
	assert.Equal(t, config.Location, fc.Location)
}

func TestEmailHasCredentials(t *testing.T) {
	email := EmailConfig{Username: "u", Password: "p"}
	assert.False(t, email.HasCredentials())

	email.MailingList = []string{"a@example.com"}
	assert.True(t, email.HasCredentials())
}
