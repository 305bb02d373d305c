package spacetraveling

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/spacetraveling/locale"
)

// SiteConfig holds all configuration for a spacetraveling site.
type SiteConfig struct {
	Name        string // Site name (default "spacetraveling")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags

	Addr         string // Listen address (default ":3000")
	DatabasePath string // Snapshot SQLite path (default "data/snapshot.db")
	StaticDir    string // User static assets and downloaded banners (default "public")

	CMSEndpoint    string // Required: content API endpoint, e.g. https://repo.cdn.prismic.io/api/v2
	CMSAccessToken string // Access token for private repositories

	PageSize            int // Posts per listing page (default 2)
	StaticPathsPageSize int // Posts pre-resolved by "build" (default 2)

	Locale   string // Date locale (default "pt-BR")
	Timezone string // IANA zone dates are shown in (default "UTC")

	PostCacheTTL  time.Duration // Content cache TTL (default 5min)
	ListingTTL    time.Duration // Idle lifetime of a listing view (default 30min)
	FallbackWait  time.Duration // How long an unknown slug blocks before the loading page (default 1.5s)
	HTTPTimeout   time.Duration // Backend request timeout (default 10s)
	LoadMoreLimit int           // "Load more" requests per IP per minute (default 30)
	HomeLimit     int           // Index page views per IP per minute (default 120)
	MaxListings   int           // Listing views kept in memory (default 10000)

	SessionSecret string // Required: session cookie secret
	CookieSecure  bool   // Set true for HTTPS

	LogLevel string // debug, info, warn or error (default "info")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/snapshot.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.PageSize <= 0 {
		c.PageSize = 2
	}
	if c.StaticPathsPageSize <= 0 {
		c.StaticPathsPageSize = 2
	}
	if c.Locale == "" {
		c.Locale = locale.DefaultLocale
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.ListingTTL == 0 {
		c.ListingTTL = 30 * time.Minute
	}
	if c.FallbackWait == 0 {
		c.FallbackWait = 1500 * time.Millisecond
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.LoadMoreLimit <= 0 {
		c.LoadMoreLimit = 30
	}
	if c.HomeLimit <= 0 {
		c.HomeLimit = 120
	}
	if c.MaxListings <= 0 {
		c.MaxListings = defaultMaxListings
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// validate checks the settings that have no sensible default.
func (c *SiteConfig) validate() error {
	if c.CMSEndpoint == "" {
		return fmt.Errorf("spacetraveling: CMSEndpoint is required")
	}
	if !strings.HasPrefix(c.CMSEndpoint, "http://") && !strings.HasPrefix(c.CMSEndpoint, "https://") {
		return fmt.Errorf("spacetraveling: CMSEndpoint must be an http(s) URL, got %q", c.CMSEndpoint)
	}
	if !locale.Supported(c.Locale) {
		return fmt.Errorf("spacetraveling: unsupported locale %q", c.Locale)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("spacetraveling: timezone: %w", err)
	}
	return nil
}

// ConfigFromEnv builds a SiteConfig from environment variables. Unset
// variables keep their defaults; malformed numbers and durations are errors.
func ConfigFromEnv() (SiteConfig, error) {
	cfg := SiteConfig{
		Name:           os.Getenv("SITE_NAME"),
		URL:            os.Getenv("SITE_URL"),
		Description:    os.Getenv("SITE_DESCRIPTION"),
		Addr:           os.Getenv("ADDR"),
		DatabasePath:   os.Getenv("DATABASE_PATH"),
		StaticDir:      os.Getenv("STATIC_DIR"),
		CMSEndpoint:    os.Getenv("CMS_ENDPOINT"),
		CMSAccessToken: os.Getenv("CMS_ACCESS_TOKEN"),
		Locale:         os.Getenv("LOCALE"),
		Timezone:       os.Getenv("TIMEZONE"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
	}
	var err error
	if cfg.PageSize, err = envInt("PAGE_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.StaticPathsPageSize, err = envInt("STATIC_PATHS_PAGE_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.LoadMoreLimit, err = envInt("LOAD_MORE_LIMIT"); err != nil {
		return cfg, err
	}
	if cfg.HomeLimit, err = envInt("HOME_LIMIT"); err != nil {
		return cfg, err
	}
	if cfg.MaxListings, err = envInt("MAX_LISTINGS"); err != nil {
		return cfg, err
	}
	if cfg.PostCacheTTL, err = envDuration("POST_CACHE_TTL"); err != nil {
		return cfg, err
	}
	if cfg.ListingTTL, err = envDuration("LISTING_TTL"); err != nil {
		return cfg, err
	}
	if cfg.FallbackWait, err = envDuration("FALLBACK_WAIT"); err != nil {
		return cfg, err
	}
	if cfg.HTTPTimeout, err = envDuration("HTTP_TIMEOUT"); err != nil {
		return cfg, err
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if cfg.CookieSecure, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("spacetraveling: COOKIE_SECURE: %w", err)
		}
	}
	return cfg, nil
}

func envInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("spacetraveling: %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("spacetraveling: %s: %w", key, err)
	}
	return d, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithHTTPClient replaces the HTTP client used to reach the content backend
// and download banners.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) {
		a.httpClient = hc
	}
}

// WithViews overrides the default page components.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}
