package spacetraveling

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/paginator"
	"github.com/eringen/spacetraveling/readingtime"
	"github.com/eringen/spacetraveling/richtext"
	"github.com/eringen/spacetraveling/views"
)

const headerListingID = "X-Listing-Id"

func (a *App) handleHome(c echo.Context) error {
	if !a.homeLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many requests")
	}
	page, err := a.Cache.FirstPage(c.Request().Context())
	if err != nil {
		return err
	}
	visitor, err := visitorID(c)
	if err != nil {
		return err
	}

	p := paginator.New(
		paginator.FetcherFunc(a.fetchPostPage),
		paginator.WithLogger(a.Echo.Logger),
		paginator.WithDates(a.dates),
	)
	p.Initialize(page)
	id := a.listings.Add(visitor, p)

	state := p.State()
	return Render(c, a.Views.Home(a.site, views.Listing{
		ID:        id,
		Posts:     postCards(state.Posts),
		HasMore:   state.HasMore(),
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleLoadMore(c echo.Context) error {
	if !a.moreLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many requests")
	}

	id := c.Request().Header.Get(headerListingID)
	if id == "" {
		id = c.FormValue("listing")
	}
	p, err := a.listings.Get(id, currentVisitor(c))
	if err != nil {
		return c.NoContent(http.StatusGone)
	}

	added, err := p.LoadMore(c.Request().Context())
	switch {
	case errors.Is(err, paginator.ErrLoadInFlight):
		return c.NoContent(http.StatusConflict)
	case errors.Is(err, paginator.ErrNoMorePages):
		added = nil
	case err != nil:
		// Logged by the paginator; the visitor keeps the current list.
		return c.NoContent(http.StatusNoContent)
	}

	return Render(c, a.Views.MorePosts(views.Listing{
		ID:        id,
		Posts:     postCards(added),
		HasMore:   p.HasMore(),
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	partial := c.QueryParam("partial") == "post"

	post, err := a.resolvePost(c.Request().Context(), slug)
	switch {
	case errors.Is(err, ErrPending):
		c.Response().Header().Set("Cache-Control", "no-store")
		if partial {
			return c.NoContent(http.StatusAccepted)
		}
		pollURL := "/post/" + PathEscape(slug) + "/?partial=post"
		return Render(c, a.Views.Loading(a.site, pollURL))
	case errors.Is(err, cms.ErrNotFound):
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site))
	case errors.Is(err, ErrBusy):
		c.Response().Header().Set("Cache-Control", "no-store")
		c.Response().Header().Set("Retry-After", "5")
		return RenderStatus(c, http.StatusServiceUnavailable, a.Views.ServerError(a.site))
	case err != nil:
		return err
	}

	view := a.postView(post)
	if partial {
		return Render(c, a.Views.PostPartial(view))
	}
	datePublished := ""
	if post.FirstPublicationDate != nil {
		datePublished = *post.FirstPublicationDate
	}
	return Render(c, a.Views.Post(a.site, view, datePublished))
}

// resolvePost serves snapshot posts directly and hands unknown slugs to the
// fallback resolver.
func (a *App) resolvePost(ctx context.Context, slug string) (cms.PostDetail, error) {
	if post, ok := a.Cache.Lookup(slug); ok {
		return post, nil
	}
	if a.Cache.Known(slug) {
		return a.Cache.Post(ctx, slug)
	}
	return a.fallback.Resolve(ctx, slug, a.Config.FallbackWait)
}

func (a *App) postView(post cms.PostDetail) views.PostView {
	date, err := a.dates.Format(post.FirstPublicationDate)
	if err != nil {
		a.Echo.Logger.Warnf("post %q: %v", post.UID, err)
	}
	sections := make([]views.Section, 0, len(post.Content))
	for _, block := range post.Content {
		sections = append(sections, views.Section{
			Heading: block.Heading,
			HTML:    template.HTML(richtext.AsHTML(block.Body)),
		})
	}
	return views.PostView{
		UID:         post.UID,
		Title:       post.Title,
		BannerURL:   post.BannerURL,
		Author:      post.Author,
		Date:        date,
		ReadingTime: readingtime.Format(readingtime.Estimate(post.Content)),
		Link:        postPath(post.UID),
		Content:     sections,
	}
}

func postCards(posts []cms.PostSummary) []views.PostCard {
	cards := make([]views.PostCard, 0, len(posts))
	for _, p := range posts {
		cards = append(cards, views.PostCard{
			UID:      p.UID,
			Title:    p.Title,
			Subtitle: p.Subtitle,
			Author:   p.Author,
			Date:     p.DisplayDate,
			Link:     postPath(p.UID),
		})
	}
	return cards
}

func postPath(uid string) string {
	return "/post/" + PathEscape(uid) + "/"
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.StoredPosts()
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.StoredPosts()
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.Config.StaticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	return c.String(http.StatusOK, "User-agent: *\nAllow: /\nSitemap: "+strings.TrimRight(a.Config.URL, "/")+"/sitemap.xml\n")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.site))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
