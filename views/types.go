package views

import "html/template"

// SiteConfig holds the site-wide settings every page template reads.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Lang        string // html lang attribute, e.g. "pt-BR"
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}

// PostCard is one entry of the index listing.
type PostCard struct {
	UID      string
	Title    string
	Subtitle string
	Author   string
	Date     string // display form; empty when the post has no usable date
	Link     string
}

// Listing is the index page state: the accumulated cards and whether the
// "load more" button is shown.
type Listing struct {
	ID        string // listing view the "load more" button continues
	Posts     []PostCard
	HasMore   bool
	CSRFToken string
}

// Section is one heading plus its rendered body.
type Section struct {
	Heading string
	HTML    template.HTML
}

// PostView is a fully prepared post page.
type PostView struct {
	UID         string
	Title       string
	BannerURL   string
	Author      string
	Date        string
	ReadingTime string
	Link        string
	Content     []Section
}

type page struct {
	Site   SiteConfig
	Meta   PageMeta
	JSONLD template.JS
	Body   interface{}
}
