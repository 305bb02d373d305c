// Package spacetraveling is a blog front-end built with Go, Echo, and templ
// over a headless CMS. It serves the paginated post listing, post pages with
// reading-time estimates, RSS, and a sitemap, and can snapshot the backend
// content into SQLite.
//
// Page markup is supplied through ViewFuncs; DefaultViews returns the
// built-in components.
package spacetraveling

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	glog "github.com/labstack/gommon/log"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/locale"
	"github.com/eringen/spacetraveling/views"
)

// ViewFuncs holds the components the handlers render. Replace any of them
// with WithViews to customize the markup.
type ViewFuncs struct {
	Home        func(site views.SiteConfig, listing views.Listing) templ.Component
	MorePosts   func(listing views.Listing) templ.Component
	Post        func(site views.SiteConfig, post views.PostView, datePublished string) templ.Component
	PostPartial func(post views.PostView) templ.Component
	Loading     func(site views.SiteConfig, pollURL string) templ.Component
	NotFound    func(site views.SiteConfig) templ.Component
	ServerError func(site views.SiteConfig) templ.Component
}

// DefaultViews returns the built-in components of package views.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:        views.Home,
		MorePosts:   views.MorePosts,
		Post:        views.Post,
		PostPartial: views.PostPartial,
		Loading:     views.Loading,
		NotFound:    views.NotFound,
		ServerError: views.ServerError,
	}
}

// Backend is the content API the App reads from. *cms.Client implements it.
type Backend interface {
	Query(ctx context.Context, predicates []cms.Predicate, opts cms.QueryOptions) (cms.SearchResponse, error)
	GetByUID(ctx context.Context, docType, uid string) (cms.Document, error)
	FetchPage(ctx context.Context, pageURL string) (cms.SearchResponse, error)
}

// Logger is the subset of echo.Logger the App's components write to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// App is the central spacetraveling application. It wires together the
// backend client, snapshot store, caches, handlers, and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	CMS    Backend
	Cache  *ContentCache
	Views  ViewFuncs

	dates       *locale.Formatter
	listings    *ListingRegistry
	fallback    *Resolver
	moreLimiter *RateLimiter
	homeLimiter *RateLimiter
	httpClient  *http.Client
	site        views.SiteConfig

	customRoutes []func(*App)
	stops        []func()
	coreOnce     sync.Once
	coreErr      error
	webReady     bool
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  DefaultViews(),
	}
	a.Echo.HideBanner = true
	a.Echo.Logger.SetLevel(parseLevel(cfg.LogLevel))

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func parseLevel(s string) glog.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return glog.DEBUG
	case "warn", "warning":
		return glog.WARN
	case "error":
		return glog.ERROR
	case "off":
		return glog.OFF
	default:
		return glog.INFO
	}
}

// initCore opens the store and builds the backend client and caches. It is
// shared by the server and the build command.
func (a *App) initCore() error {
	a.coreOnce.Do(func() {
		a.coreErr = a.setupCore()
	})
	return a.coreErr
}

func (a *App) setupCore() error {
	if err := a.Config.validate(); err != nil {
		return err
	}
	loc, err := time.LoadLocation(a.Config.Timezone)
	if err != nil {
		return fmt.Errorf("spacetraveling: timezone: %w", err)
	}
	a.dates = locale.ForLocale(a.Config.Locale, loc)
	a.site = views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Lang:        a.dates.Tag(),
	}

	if a.httpClient == nil {
		a.httpClient = cms.NewHTTPClient(a.Config.HTTPTimeout, a.Echo.Logger)
	}
	if a.CMS == nil {
		a.CMS = cms.New(a.Config.CMSEndpoint,
			cms.WithAccessToken(a.Config.CMSAccessToken),
			cms.WithHTTPClient(a.httpClient),
		)
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("spacetraveling: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewContentCache(a.CMS, a.Store, a.Config.PostCacheTTL, a.Config.PageSize, a.Echo.Logger)
	return nil
}

// Init prepares everything Start needs without listening: store, caches,
// middleware, and routes. Calling it more than once is a no-op.
func (a *App) Init() error {
	if err := a.initCore(); err != nil {
		return err
	}
	if a.webReady {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("spacetraveling: SessionSecret is required")
	}

	a.listings = NewListingRegistry(a.Config.ListingTTL, a.Config.MaxListings)
	a.stops = append(a.stops, a.listings.StartSweeper(time.Minute))
	a.fallback = NewResolver(a.Cache.Post, a.Config.HTTPTimeout, a.Echo.Logger)
	a.stops = append(a.stops, a.fallback.StartSweeper(resolvedTTL))
	a.moreLimiter = NewRateLimiter(a.Config.LoadMoreLimit, time.Minute)
	a.homeLimiter = NewRateLimiter(a.Config.HomeLimit, time.Minute)
	a.stops = append(a.stops, a.moreLimiter.Stop, a.homeLimiter.Stop)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.webReady = true
	return nil
}

// Start initializes the App and starts the server. It returns nil once the
// server is shut down.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/spacetraveling.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/style.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.Config.StaticDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	csrf := a.csrfMiddleware()
	e.GET("/", a.handleHome, csrf)
	e.POST("/posts/more/", a.handleLoadMore, csrf)
	e.GET("/post/:slug/", a.handlePost)
}

// fetchPostPage follows a listing cursor. It is the paginator's PageFetcher.
func (a *App) fetchPostPage(ctx context.Context, pageURL string) (cms.PostPage, error) {
	resp, err := a.CMS.FetchPage(ctx, pageURL)
	if err != nil {
		return cms.PostPage{}, err
	}
	return cms.Summaries(resp)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
