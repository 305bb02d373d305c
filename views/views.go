// Package views holds the default page components. Each exported function
// returns a templ.Component backed by the embedded HTML templates.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.New("views").ParseFS(templateFS, "templates/*.html"))

func component(name string, data interface{}) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return tmpl.ExecuteTemplate(w, name, data)
	})
}

func title(cfg SiteConfig, prefix string) string {
	if prefix == "" {
		return cfg.Name
	}
	return prefix + " | " + cfg.Name
}

// Home renders the full index page.
func Home(cfg SiteConfig, listing Listing) templ.Component {
	return component("home", page{
		Site: cfg,
		Meta: PageMeta{
			Title:       title(cfg, "Posts"),
			Description: cfg.Description,
			URL:         buildURL(cfg.URL),
			OGType:      "website",
		},
		JSONLD: template.JS(WebsiteJsonLD(cfg)),
		Body:   listing,
	})
}

// MorePosts renders the cards appended by "load more" followed by the
// replacement footer.
func MorePosts(listing Listing) templ.Component {
	return component("more-posts", listing)
}

// Post renders the full post page.
func Post(cfg SiteConfig, post PostView, datePublished string) templ.Component {
	return component("post", page{
		Site: cfg,
		Meta: PageMeta{
			Title:       title(cfg, post.Title),
			Description: post.Title,
			URL:         buildURL(cfg.URL, "post", post.UID),
			OGType:      "article",
		},
		JSONLD: template.JS(BlogPostingJsonLD(cfg, post, datePublished)),
		Body:   post,
	})
}

// PostPartial renders only the post's <main> element.
func PostPartial(post PostView) templ.Component {
	return component("post-main", post)
}

// Loading renders the placeholder shown while an unknown slug is resolved.
// pollURL is fetched by the page script until the post is ready.
func Loading(cfg SiteConfig, pollURL string) templ.Component {
	return component("loading", page{
		Site: cfg,
		Meta: PageMeta{Title: title(cfg, "Carregando..."), URL: buildURL(cfg.URL), OGType: "website"},
		Body: pollURL,
	})
}

// NotFound renders the 404 page.
func NotFound(cfg SiteConfig) templ.Component {
	return component("not-found", page{
		Site: cfg,
		Meta: PageMeta{Title: title(cfg, "Página não encontrada"), URL: buildURL(cfg.URL), OGType: "website"},
	})
}

// ServerError renders the 500 page.
func ServerError(cfg SiteConfig) templ.Component {
	return component("server-error", page{
		Site: cfg,
		Meta: PageMeta{Title: title(cfg, "Erro"), URL: buildURL(cfg.URL), OGType: "website"},
	})
}
