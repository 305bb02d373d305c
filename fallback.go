package spacetraveling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eringen/spacetraveling/cms"
)

// ErrPending is returned by Resolver.Resolve while the post is still loading.
var ErrPending = errors.New("spacetraveling: post is still loading")

// ErrBusy is returned by Resolver.Resolve when too many loads are running to
// start another one.
var ErrBusy = errors.New("spacetraveling: too many posts loading")

const (
	// resolvedTTL is how long a finished resolution is kept for polling clients.
	resolvedTTL = time.Minute
	// maxLoads bounds the loads a Resolver runs at once.
	maxLoads = 32
)

// PostLoader loads one post by UID.
type PostLoader func(ctx context.Context, uid string) (cms.PostDetail, error)

type resolution struct {
	done     chan struct{}
	post     cms.PostDetail
	err      error
	finished time.Time
}

// Resolver loads posts that were not part of the snapshot. Each UID has at
// most one load running; every caller asking for it joins that load.
type Resolver struct {
	load    PostLoader
	timeout time.Duration
	log     Logger

	mu       sync.Mutex
	entries  map[string]*resolution
	loading  int
	maxLoads int
	now      func() time.Time
}

// NewResolver creates a Resolver. Each load is bounded by timeout.
func NewResolver(load PostLoader, timeout time.Duration, log Logger) *Resolver {
	return &Resolver{
		load:     load,
		timeout:  timeout,
		log:      log,
		entries:  make(map[string]*resolution),
		maxLoads: maxLoads,
		now:      time.Now,
	}
}

// Resolve starts or joins the load of uid and waits up to wait for it.
// It returns ErrPending when the load has not finished in time, and
// cms.ErrNotFound when the backend has no such post.
func (r *Resolver) Resolve(ctx context.Context, uid string, wait time.Duration) (cms.PostDetail, error) {
	e, err := r.entry(uid)
	if err != nil {
		return cms.PostDetail{}, err
	}

	if wait <= 0 {
		select {
		case <-e.done:
			return e.post, e.err
		default:
			return cms.PostDetail{}, ErrPending
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-e.done:
		return e.post, e.err
	case <-timer.C:
		return cms.PostDetail{}, ErrPending
	case <-ctx.Done():
		return cms.PostDetail{}, ctx.Err()
	}
}

// Forget drops whatever is known about uid so the next Resolve loads it again.
func (r *Resolver) Forget(uid string) {
	r.mu.Lock()
	delete(r.entries, uid)
	r.mu.Unlock()
}

// Sweep drops finished resolutions older than resolvedTTL and returns how
// many were dropped.
func (r *Resolver) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for uid, e := range r.entries {
		if r.expired(e, now) {
			delete(r.entries, uid)
			removed++
		}
	}
	return removed
}

// Len returns the number of known resolutions, running ones included.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// StartSweeper runs Sweep every interval in the background.
// Returns a stop function that ends the loop.
func (r *Resolver) StartSweeper(interval time.Duration) func() {
	return startSweeper(interval, func() { r.Sweep() })
}

func (r *Resolver) expired(e *resolution, now time.Time) bool {
	return !e.finished.IsZero() && now.Sub(e.finished) >= resolvedTTL
}

func (r *Resolver) entry(uid string) (*resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uid]
	if ok && !r.expired(e, r.now()) {
		return e, nil
	}
	if r.loading >= r.maxLoads {
		return nil, ErrBusy
	}
	e = &resolution{done: make(chan struct{})}
	r.entries[uid] = e
	r.loading++
	go r.run(uid, e)
	return e, nil
}

func (r *Resolver) run(uid string, e *resolution) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	post, err := r.load(ctx, uid)
	e.post, e.err = post, err

	r.mu.Lock()
	r.loading--
	e.finished = r.now()
	if err != nil && !errors.Is(err, cms.ErrNotFound) {
		// Failed loads are retried by the next request.
		if r.entries[uid] == e {
			delete(r.entries, uid)
		}
		r.log.Errorf("fallback: failed loading post %q: %v", uid, err)
	}
	r.mu.Unlock()
	close(e.done)
}
