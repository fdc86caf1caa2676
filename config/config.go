package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"sjsage522/flightdealworker/internal/filter"
	"sjsage522/flightdealworker/internal/offer"
	"sjsage522/flightdealworker/pkg/errors"
)

// Persist policies decide whether the snapshot is written before or after notifying
const (
	PersistNotifyFirst  = "notify-first"
	PersistPersistFirst = "persist-first"
)

// EmailConfig holds SMTP delivery settings
type EmailConfig struct {
	SMTPServer  string
	SMTPPort    int
	Username    string
	Password    string
	MailingList []string
}

// HasCredentials reports whether a send can be attempted
func (e EmailConfig) HasCredentials() bool {
	return e.Username != "" && e.Password != "" && len(e.MailingList) > 0
}

// Config represents the application configuration
type Config struct {
	// Source page
	TustusURL         string
	CheckInterval     time.Duration
	BlockTime         time.Duration
	RequestsPerMinute int
	UseBrowser        bool
	BrowserURL        string

	// Extraction and relevance
	KnownDestinations    []string
	AllowedDestinations  []string
	ExcludedDestinations []string
	RequireAllowlist     bool
	RequirePrice         bool
	ExtractMinPrice      int
	ExtractMaxPrice      int
	MaxFlightAge         time.Duration
	MinDaysAdvance       int
	MaxDaysAdvance       int
	MaxPrice             int
	Location             *time.Location

	// Diff and persistence
	IgnorePriceChanges bool
	PriceDropThreshold int
	PersistPolicy      string
	DataFile           string

	Email EmailConfig

	// Redis configuration; empty address disables the stream channel
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int64

	// Memcache configuration; empty address uses an in-process cache
	MemcacheAddr string

	// Metrics listen address; empty disables the endpoint
	MetricsAddr string

	// Environment
	Environment string
}

// loader resolves keys from the environment first, then the YAML overlay
type loader struct {
	overlay map[string]string
	err     error
}

func (l *loader) get(key, defaultValue string) string {
	if v := getEnv(key, ""); v != "" {
		return v
	}
	if v, ok := l.overlay[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

func (l *loader) getInt(key string, defaultValue int) int {
	raw := l.get(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		l.fail(key, raw, err)
		return defaultValue
	}
	return v
}

func (l *loader) getBool(key string, defaultValue bool) bool {
	raw := l.get(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		l.fail(key, raw, err)
		return defaultValue
	}
	return v
}

func (l *loader) getList(key string, defaultValue []string) []string {
	raw := l.get(key, "")
	if raw == "" {
		return defaultValue
	}
	return splitList(raw)
}

func (l *loader) fail(key, raw string, err error) {
	if l.err == nil {
		l.err = errors.NewConfiguration(fmt.Sprintf("invalid value %q for %s", raw, key), err)
	}
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	cfg, _ := build(&loader{})
	return cfg
}

// Load reads the optional YAML file at path (or CONFIG_FILE when path is
// empty), applies environment variables over it and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = getEnv("CONFIG_FILE", "")
	}

	l := &loader{}
	if path != "" {
		overlay, err := readOverlay(path)
		if err != nil {
			return nil, err
		}
		l.overlay = overlay
	}

	cfg, err := build(l)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(l *loader) (*Config, error) {
	cfg := &Config{
		TustusURL:         l.get("TUSTUS_URL", "https://www.tustus.co.il/Arkia/Home"),
		CheckInterval:     time.Duration(l.getInt("CHECK_INTERVAL_MINUTES", 30)) * time.Minute,
		BlockTime:         time.Duration(l.getInt("BLOCK_TIME_SECONDS", 1800)) * time.Second,
		RequestsPerMinute: l.getInt("REQUESTS_PER_MINUTE", 6),
		UseBrowser:        l.getBool("USE_BROWSER", false),
		BrowserURL:        l.get("BROWSER_URL", ""),

		KnownDestinations:    l.getList("KNOWN_DESTINATIONS", offer.KnownDestinations),
		AllowedDestinations:  l.getList("ALLOWED_DESTINATIONS", nil),
		ExcludedDestinations: l.getList("EXCLUDED_DESTINATIONS", nil),
		RequireAllowlist:     l.getBool("REQUIRE_ALLOWLIST", false),
		RequirePrice:         l.getBool("REQUIRE_PRICE", true),
		ExtractMinPrice:      l.getInt("EXTRACT_MIN_PRICE", 100),
		ExtractMaxPrice:      l.getInt("EXTRACT_MAX_PRICE", 3000),
		MaxFlightAge:         time.Duration(l.getInt("MAX_FLIGHT_AGE_HOURS", 24)) * time.Hour,
		MinDaysAdvance:       l.getInt("MIN_DAYS_ADVANCE", 0),
		MaxDaysAdvance:       l.getInt("MAX_DAYS_ADVANCE", 365),
		MaxPrice:             l.getInt("MAX_PRICE", 0),

		IgnorePriceChanges: l.getBool("IGNORE_PRICE_CHANGES", false),
		PriceDropThreshold: l.getInt("PRICE_DROP_THRESHOLD", 50),
		PersistPolicy:      l.get("PERSIST_POLICY", PersistNotifyFirst),
		DataFile:           l.get("DATA_FILE", "flights_data.json"),

		Email: EmailConfig{
			SMTPServer:  l.get("EMAIL_SMTP_SERVER", "smtp.gmail.com"),
			SMTPPort:    l.getInt("EMAIL_SMTP_PORT", 587),
			Username:    l.get("EMAIL_USERNAME", ""),
			Password:    l.get("EMAIL_PASSWORD", ""),
			MailingList: l.getList("MAILING_LIST", nil),
		},

		RedisAddr:            l.get("REDIS_ADDR", ""),
		RedisDB:              l.getInt("REDIS_DB", 0),
		RedisStream:          l.get("REDIS_STREAM", "flightdeals"),
		RedisStreamMaxLength: int64(l.getInt("REDIS_STREAM_MAX_LENGTH", 1000)),

		MemcacheAddr: l.get("MEMCACHE_ADDR", ""),
		MetricsAddr:  l.get("METRICS_ADDR", ""),
		Environment:  l.get("FLIGHTDEAL_ENVIRONMENT", "development"),
	}

	cfg.Location = time.Local
	if tz := l.get("TIMEZONE", "Asia/Jerusalem"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			l.fail("TIMEZONE", tz, err)
		} else {
			cfg.Location = loc
		}
	}

	return cfg, l.err
}

// Validate checks values that would make the worker misbehave
func (c *Config) Validate() error {
	if c.TustusURL == "" {
		return errors.NewConfiguration("TUSTUS_URL is required", nil)
	}
	if c.CheckInterval <= 0 {
		return errors.NewConfiguration("CHECK_INTERVAL_MINUTES must be positive", nil)
	}
	if c.PersistPolicy != PersistNotifyFirst && c.PersistPolicy != PersistPersistFirst {
		return errors.NewConfiguration(fmt.Sprintf("unknown PERSIST_POLICY %q", c.PersistPolicy), nil)
	}
	if c.MinDaysAdvance < 0 || c.MinDaysAdvance > c.MaxDaysAdvance {
		return errors.NewConfiguration(fmt.Sprintf("invalid advance window %d..%d days", c.MinDaysAdvance, c.MaxDaysAdvance), nil)
	}
	if c.MaxFlightAge < 0 || c.MaxPrice < 0 || c.PriceDropThreshold < 0 {
		return errors.NewConfiguration("MAX_FLIGHT_AGE_HOURS, MAX_PRICE and PRICE_DROP_THRESHOLD must not be negative", nil)
	}
	if c.ExtractMinPrice < 0 || c.ExtractMaxPrice < 0 || (c.ExtractMaxPrice > 0 && c.ExtractMinPrice > c.ExtractMaxPrice) {
		return errors.NewConfiguration(fmt.Sprintf("invalid extraction price range %d..%d", c.ExtractMinPrice, c.ExtractMaxPrice), nil)
	}
	if c.DataFile == "" {
		return errors.NewConfiguration("DATA_FILE is required", nil)
	}
	if c.RequireAllowlist && len(c.AllowedDestinations) == 0 {
		return errors.NewConfiguration("REQUIRE_ALLOWLIST is set but ALLOWED_DESTINATIONS is empty", nil)
	}
	return nil
}

// RecognisedDestinations is the extraction list: known names first, then
// allowed and excluded names not already present. Excluded names must be
// recognised so the filter can drop them.
func (c *Config) RecognisedDestinations() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, list := range [][]string{c.KnownDestinations, c.AllowedDestinations, c.ExcludedDestinations} {
		for _, name := range list {
			if _, ok := seen[name]; ok || name == "" {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// FilterConfig converts the relevance settings for the filter package
func (c *Config) FilterConfig() filter.Config {
	return filter.Config{
		Allowlist:        filter.Set(c.AllowedDestinations...),
		Denylist:         filter.Set(c.ExcludedDestinations...),
		RequireAllowlist: c.RequireAllowlist,
		MaxAge:           c.MaxFlightAge,
		MinDaysAdvance:   c.MinDaysAdvance,
		MaxDaysAdvance:   c.MaxDaysAdvance,
		MaxPrice:         c.MaxPrice,
		Location:         c.Location,
	}
}

// readOverlay parses a flat YAML document keyed like the environment variables.
// Sequence values become comma lists.
func readOverlay(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration("read config file "+path, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewConfiguration("parse config file "+path, err)
	}

	overlay := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case []interface{}:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			overlay[strings.ToUpper(key)] = strings.Join(parts, ",")
		default:
			overlay[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}
	return overlay, nil
}

// splitList splits a comma separated value, trimming blanks
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
