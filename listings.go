package spacetraveling

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eringen/spacetraveling/paginator"
)

// ErrListingExpired is returned for listing ids that are unknown, idle past
// their TTL, evicted, or owned by another visitor.
var ErrListingExpired = errors.New("spacetraveling: listing expired")

// defaultMaxListings bounds a registry created with a non-positive size.
const defaultMaxListings = 10000

type listingEntry struct {
	owner   string
	pager   *paginator.Paginator
	touched time.Time
}

// ListingRegistry keeps one Paginator per rendered index page so that
// "load more" continues the exact listing the visitor is looking at. Once
// full, adding evicts the least recently used entry.
type ListingRegistry struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *listingEntry]
	ttl     time.Duration
	now     func() time.Time
}

// NewListingRegistry creates a registry of up to size entries that expire
// after ttl without use.
func NewListingRegistry(ttl time.Duration, size int) *ListingRegistry {
	if size <= 0 {
		size = defaultMaxListings
	}
	entries, _ := lru.New[string, *listingEntry](size)
	return &ListingRegistry{
		entries: entries,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add stores p for owner and returns the new listing id.
func (r *ListingRegistry) Add(owner string, p *paginator.Paginator) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries.Add(id, &listingEntry{owner: owner, pager: p, touched: r.now()})
	r.mu.Unlock()
	return id
}

// Get returns the Paginator of listing id and refreshes its TTL.
func (r *ListingRegistry) Get(id, owner string) (*paginator.Paginator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries.Peek(id)
	if !ok || e.owner != owner {
		return nil, ErrListingExpired
	}
	now := r.now()
	if now.Sub(e.touched) >= r.ttl {
		r.entries.Remove(id)
		return nil, ErrListingExpired
	}
	r.entries.Get(id)
	e.touched = now
	return e.pager, nil
}

// Sweep removes expired entries and returns how many were removed.
func (r *ListingRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for _, id := range r.entries.Keys() {
		e, ok := r.entries.Peek(id)
		if ok && now.Sub(e.touched) >= r.ttl {
			r.entries.Remove(id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries, expired ones included until swept.
func (r *ListingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries.Len()
}

// StartSweeper runs Sweep every interval in the background.
// Returns a stop function that ends the loop.
func (r *ListingRegistry) StartSweeper(interval time.Duration) func() {
	return startSweeper(interval, func() { r.Sweep() })
}

// startSweeper calls sweep every interval until the returned func is called.
func startSweeper(interval time.Duration, sweep func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				sweep()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}
