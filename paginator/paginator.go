// Package paginator accumulates post summaries for one rendered listing by
// following the backend's opaque next-page cursor.
package paginator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/locale"
)

var (
	// ErrNoMorePages is returned by LoadMore when the cursor is empty.
	ErrNoMorePages = errors.New("paginator: no more pages")
	// ErrLoadInFlight is returned by LoadMore while another load is outstanding.
	ErrLoadInFlight = errors.New("paginator: load already in flight")
)

// PageFetcher retrieves the page behind a cursor URL.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (cms.PostPage, error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc func(ctx context.Context, url string) (cms.PostPage, error)

// FetchPage calls f.
func (f FetcherFunc) FetchPage(ctx context.Context, url string) (cms.PostPage, error) {
	return f(ctx, url)
}

// Logger is the subset of echo.Logger the paginator reports to.
type Logger interface {
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// State is the accumulated listing: posts in fetch order plus the cursor of
// the next page.
type State struct {
	Posts  []cms.PostSummary
	Cursor string
}

// Apply returns the state after a successful page fetch: page results are
// appended after the existing posts and the cursor is replaced wholesale.
// s is not modified.
func (s State) Apply(page cms.PostPage) State {
	posts := make([]cms.PostSummary, 0, len(s.Posts)+len(page.Results))
	posts = append(posts, s.Posts...)
	posts = append(posts, page.Results...)
	return State{Posts: posts, Cursor: page.NextPage}
}

// HasMore reports whether another page can be loaded.
func (s State) HasMore() bool {
	return s.Cursor != ""
}

// Paginator owns the State of one listing view.
type Paginator struct {
	fetcher PageFetcher
	dates   *locale.Formatter
	log     Logger

	mu       sync.Mutex
	state    State
	inFlight bool
}

// Option configures a Paginator.
type Option func(*Paginator)

// WithLogger sets where fetch and date failures are reported.
func WithLogger(l Logger) Option {
	return func(p *Paginator) {
		if l != nil {
			p.log = l
		}
	}
}

// WithDates sets the formatter used to normalize publication dates.
func WithDates(f *locale.Formatter) Option {
	return func(p *Paginator) {
		if f != nil {
			p.dates = f
		}
	}
}

// New creates an empty Paginator that loads further pages through fetcher.
func New(fetcher PageFetcher, opts ...Option) *Paginator {
	p := &Paginator{
		fetcher: fetcher,
		dates:   locale.ForLocale(locale.DefaultLocale, nil),
		log:     nopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize replaces the state with the date-normalized initial page.
func (p *Paginator) Initialize(page cms.PostPage) {
	page.Results = p.normalize(page.Results)
	p.mu.Lock()
	p.state = State{}.Apply(page)
	p.mu.Unlock()
}

// LoadMore fetches the page behind the current cursor and appends its
// results. It returns the newly appended summaries. On failure the state is
// left exactly as it was.
func (p *Paginator) LoadMore(ctx context.Context) ([]cms.PostSummary, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return nil, ErrLoadInFlight
	}
	cursor := p.state.Cursor
	if cursor == "" {
		p.mu.Unlock()
		return nil, ErrNoMorePages
	}
	p.inFlight = true
	p.mu.Unlock()

	page, err := p.fetcher.FetchPage(ctx, cursor)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if err != nil {
		p.log.Errorf("paginator: failed retrieving %s: %v", cursor, err)
		return nil, fmt.Errorf("paginator: load more: %w", err)
	}
	page.Results = p.normalize(page.Results)
	p.state = p.state.Apply(page)

	added := make([]cms.PostSummary, len(page.Results))
	copy(added, page.Results)
	return added, nil
}

func (p *Paginator) normalize(in []cms.PostSummary) []cms.PostSummary {
	out, err := cms.NormalizeSummaries(p.dates, in)
	if err != nil {
		p.log.Warnf("paginator: %v", err)
	}
	return out
}

// State returns a copy of the accumulated state.
func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	posts := make([]cms.PostSummary, len(p.state.Posts))
	copy(posts, p.state.Posts)
	return State{Posts: posts, Cursor: p.state.Cursor}
}

// Posts returns a copy of the accumulated posts in fetch order.
func (p *Paginator) Posts() []cms.PostSummary {
	return p.State().Posts
}

// Cursor returns the next page URL, or "".
func (p *Paginator) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Cursor
}

// HasMore reports whether the "load more" affordance should be shown.
func (p *Paginator) HasMore() bool {
	return p.Cursor() != ""
}

// Loading reports whether a LoadMore call is outstanding.
func (p *Paginator) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}
