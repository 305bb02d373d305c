package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
)

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      buildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	if cfg.Lang != "" {
		data["inLanguage"] = cfg.Lang
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
// datePublished is the raw backend timestamp, which may be empty.
func BlogPostingJsonLD(cfg SiteConfig, post PostView, datePublished string) string {
	postURL := buildURL(cfg.URL, "post", post.UID)
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "BlogPosting",
		"headline": post.Title,
		"url":      postURL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if datePublished != "" {
		data["datePublished"] = datePublished
	}
	if post.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  post.Author,
		}
	}
	if post.BannerURL != "" {
		img := post.BannerURL
		if strings.HasPrefix(img, "/") {
			img = strings.TrimRight(cfg.URL, "/") + img
		}
		data["image"] = img
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
