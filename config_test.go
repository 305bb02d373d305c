package spacetraveling

import (
	"testing"
	"time"

	glog "github.com/labstack/gommon/log"
)

func TestSetDefaults(t *testing.T) {
	var cfg SiteConfig
	cfg.setDefaults()
	if cfg.PageSize != 2 || cfg.StaticPathsPageSize != 2 {
		t.Errorf("page sizes = %d/%d, want 2/2", cfg.PageSize, cfg.StaticPathsPageSize)
	}
	if cfg.Locale != "pt-BR" || cfg.Timezone != "UTC" {
		t.Errorf("locale = %q tz = %q", cfg.Locale, cfg.Timezone)
	}
	if cfg.FallbackWait != 1500*time.Millisecond || cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("durations = %v/%v", cfg.FallbackWait, cfg.HTTPTimeout)
	}
	if cfg.Addr != ":3000" || cfg.DatabasePath != "data/snapshot.db" {
		t.Errorf("addr = %q db = %q", cfg.Addr, cfg.DatabasePath)
	}
	if cfg.HomeLimit != 120 || cfg.MaxListings != 10000 {
		t.Errorf("home limit = %d max listings = %d", cfg.HomeLimit, cfg.MaxListings)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  SiteConfig
		ok   bool
	}{
		{"valid", SiteConfig{CMSEndpoint: "https://repo.cdn.prismic.io/api/v2"}, true},
		{"missing endpoint", SiteConfig{}, false},
		{"bad scheme", SiteConfig{CMSEndpoint: "repo.cdn.prismic.io"}, false},
		{"bad locale", SiteConfig{CMSEndpoint: "https://x.io", Locale: "xx-YY"}, false},
		{"bad timezone", SiteConfig{CMSEndpoint: "https://x.io", Timezone: "Mars/Olympus"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.setDefaults()
			err := cfg.validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CMS_ENDPOINT", "https://repo.cdn.prismic.io/api/v2")
	t.Setenv("PAGE_SIZE", "5")
	t.Setenv("FALLBACK_WAIT", "250ms")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("LOCALE", "en-US")
	t.Setenv("MAX_LISTINGS", "500")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.CMSEndpoint != "https://repo.cdn.prismic.io/api/v2" || cfg.PageSize != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxListings != 500 {
		t.Errorf("MaxListings = %d, want 500", cfg.MaxListings)
	}
	if cfg.FallbackWait != 250*time.Millisecond || !cfg.CookieSecure || cfg.Locale != "en-US" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestConfigFromEnvRejectsMalformed(t *testing.T) {
	t.Setenv("PAGE_SIZE", "two")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected error for PAGE_SIZE=two")
	}

	t.Setenv("PAGE_SIZE", "")
	t.Setenv("LISTING_TTL", "soon")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected error for LISTING_TTL=soon")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]glog.Lvl{"debug": glog.DEBUG, "WARN": glog.WARN, "error": glog.ERROR, "off": glog.OFF, "": glog.INFO, "bogus": glog.INFO} {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}
